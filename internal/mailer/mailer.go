package mailer

import "context"

// Message is one outbound transactional email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer sends transactional email through an external provider. Senders are
// expected to be idempotent per provider-side dedup key; this interface does
// not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
