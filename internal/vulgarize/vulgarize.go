// Package vulgarize turns a finalized consultation report into a
// plain-language summary the pet owner can read. One model call per report;
// the report itself is never mutated.
package vulgarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/osteovet/platform/internal/models"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Vulgarizer generates owner-readable report summaries using the Gemini API.
type Vulgarizer struct {
	client *genai.Client
	model  string
}

// New creates a vulgarizer. An empty model selects the default.
func New(ctx context.Context, apiKey, model string) (*Vulgarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Vulgarizer{
		client: client,
		model:  model,
	}, nil
}

// Summarize produces a plain-language rendition of a report and its
// observations.
func (v *Vulgarizer) Summarize(ctx context.Context, report *models.Report, observations []*models.AnatomicalObservation) (string, error) {
	prompt := BuildPrompt(report, observations)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := v.client.Models.GenerateContent(ctx, v.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generation failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no text returned by model")
	}

	return text, nil
}

// BuildPrompt assembles the model prompt from a report and its observations.
// Exported for tests; the wording is user-facing French to match the rest of
// the product.
func BuildPrompt(report *models.Report, observations []*models.AnatomicalObservation) string {
	var b strings.Builder

	b.WriteString("Tu es un assistant vétérinaire. Réécris ce compte rendu d'ostéopathie ")
	b.WriteString("en langage simple, compréhensible par le propriétaire de l'animal, ")
	b.WriteString("sans jargon médical et sans inventer d'informations.\n\n")

	fmt.Fprintf(&b, "Compte rendu: %s (%s)\n", report.Title, report.ReportDate.Format("02/01/2006"))

	if len(observations) == 0 {
		b.WriteString("Aucune observation anatomique enregistrée.\n")
		return b.String()
	}

	b.WriteString("Observations:\n")
	for _, obs := range observations {
		fmt.Fprintf(&b, "- %s (%s, latéralité %s, sévérité %d/5)",
			obs.PartName, obs.Type, obs.Laterality, obs.Severity)
		if obs.Notes != "" {
			fmt.Fprintf(&b, " : %s", obs.Notes)
		}
		b.WriteString("\n")
	}

	return b.String()
}
