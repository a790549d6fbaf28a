package mailer

import (
	"context"
	"sync"

	"k8s.io/klog/v2"
)

// LogSender writes messages to the log and keeps them in memory. It is the
// driver for local development and tests.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	s.mu.Unlock()
	klog.Infof("mail to %v: %s", msg.To, msg.Subject)
	klog.V(4).Info(msg.HTML)
	return nil
}

// Sent returns the messages sent so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
