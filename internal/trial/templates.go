package trial

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// templateData is what each lifecycle email template renders from.
type templateData struct {
	OrgName       string
	TrialEnd      string // formatted date
	DaysRemaining int
	UpgradeURL    string
	CancelURL     string
}

var lifecycleTemplates = template.Must(template.New("lifecycle").Parse(`
{{define "welcome"}}
<h1>Bienvenue, {{.OrgName}} !</h1>
<p>Votre essai gratuit a commencé. Vous avez jusqu'au {{.TrialEnd}} pour
découvrir la plateforme : fiches clients, patients, comptes rendus et suivi
de l'évolution anatomique.</p>
{{end}}

{{define "follow_up"}}
<h1>Bien démarrer avec la plateforme</h1>
<p>{{.OrgName}}, il vous reste {{.DaysRemaining}} jours d'essai.</p>
<p>Pensez à créer vos premiers patients et à finaliser un compte rendu pour
voir le suivi d'évolution en action.</p>
{{end}}

{{define "first_reminder"}}
<h1>Votre essai se termine bientôt</h1>
<p>{{.OrgName}}, il vous reste {{.DaysRemaining}} jours d'essai, jusqu'au {{.TrialEnd}}.</p>
<p><a href="{{.UpgradeURL}}">Passer à l'abonnement</a> ou
<a href="{{.CancelURL}}">résilier l'essai</a>.</p>
{{end}}

{{define "final_alert"}}
<h1>Dernier jour d'essai</h1>
<p>{{.OrgName}}, il vous reste {{.DaysRemaining}} jour d'essai. Votre accès se
termine le {{.TrialEnd}}.</p>
<p><a href="{{.UpgradeURL}}">Passer à l'abonnement</a> ou
<a href="{{.CancelURL}}">résilier l'essai</a>.</p>
{{end}}
`))

// renderStep renders the HTML body for one lifecycle step.
func renderStep(step Step, orgName string, trialEnd time.Time, upgradeURL, cancelURL string) (string, error) {
	data := templateData{
		OrgName:       orgName,
		TrialEnd:      trialEnd.Format("02/01/2006"),
		DaysRemaining: step.DaysRemaining,
	}
	if step.IncludeLinks {
		data.UpgradeURL = upgradeURL
		data.CancelURL = cancelURL
	}

	var buf strings.Builder
	if err := lifecycleTemplates.ExecuteTemplate(&buf, string(step.Kind), data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", step.Kind, err)
	}

	return buf.String(), nil
}
