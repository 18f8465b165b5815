// Package redissink publishes turn.Events to a Redis pub/sub channel keyed
// by job id, so a separate process (an HTTP/websocket gateway) can relay
// progress to a client without sharing memory with the worker running
// RunTurn.
package redissink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jv92admin/alfred/turn"
)

// Sink publishes each event as JSON on "alfred:events:<job_id>".
type Sink struct {
	Client  *redis.Client
	Prefix  string // default "alfred:events:"
	Timeout time.Duration // default 2s
}

// New builds a Sink with sane defaults.
func New(client *redis.Client) *Sink {
	return &Sink{Client: client, Prefix: "alfred:events:", Timeout: 2 * time.Second}
}

func (s *Sink) channel(jobID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "alfred:events:"
	}
	return prefix + jobID
}

// Publish best-effort publishes e; a publish failure (no subscriber,
// connection hiccup) is swallowed rather than propagated, matching
// turn.EventSink's no-backpressure contract.
func (s *Sink) Publish(e turn.Event) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.Client.Publish(ctx, s.channel(e.JobID), raw)
}
