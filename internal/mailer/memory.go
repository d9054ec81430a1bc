package mailer

import (
	"context"
	"errors"
	"sync"
)

// ErrSendDisabled is returned by a capture mailer configured to fail.
var ErrSendDisabled = errors.New("send disabled")

// CaptureMailer records messages instead of sending them. Used by tests and
// by development mode when no provider credentials are configured.
type CaptureMailer struct {
	mu sync.Mutex

	messages []Message

	// FailWith, when set, is returned by every Send call.
	FailWith error
}

// NewCaptureMailer creates an empty capture mailer.
func NewCaptureMailer() *CaptureMailer {
	return &CaptureMailer{}
}

// Send records the message.
func (m *CaptureMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}

	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *CaptureMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
