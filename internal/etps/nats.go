package etps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject audit consumers subscribe to.
const DefaultSubject = "linkgate.etps.events"

// NATSSink publishes events as JSON to a NATS subject for out-of-process
// audit consumers.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}

	// TODO(security): Configure credentials, TLS, and reconnect/backoff.
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("etps: connect nats %s: %w", url, err)
	}
	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Deliver(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("etps: encode event: %w", err)
	}
	return s.nc.Publish(s.subject, payload)
}

func (s *NATSSink) Close() error {
	if s.nc != nil {
		if err := s.nc.Flush(); err != nil {
			s.nc.Close()
			return err
		}
		s.nc.Close()
	}
	return nil
}
