// Package publish delivers run events to their consumers: newline-delimited
// JSON on a writer, or an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
)

// Sink receives events in order.
type Sink interface {
	Publish(ev simulation.Event) error
	Close() error
}

// JSONLines writes one JSON record per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines returns a sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Publish implements Sink.
func (j *JSONLines) Publish(ev simulation.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(ev)
}

// Close implements Sink. The writer is owned by the caller.
func (j *JSONLines) Close() error { return nil }

type multi []Sink

// Multi fans every event out to all sinks, reporting every failure.
func Multi(sinks ...Sink) Sink { return multi(sinks) }

func (m multi) Publish(ev simulation.Event) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Publish(ev))
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
