package simulation

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/kalman"
)

// Kind discriminates events. The values are the wire type tags.
type Kind string

const (
	KindIndicator  Kind = "esi"
	KindRUL        Kind = "rul"
	KindCompletion Kind = "status"
	KindError      Kind = "error"
)

// StatusCompleted is the status carried by completion events.
const StatusCompleted = "completed"

// LabelUnavailable is the step error label for a missing signal.
const LabelUnavailable = "file_not_found"

// StepFailure explains why a step produced no indicator.
type StepFailure struct {
	Err error
}

// Label returns the wire error label of the failure.
func (f *StepFailure) Label() string {
	if errors.Is(f.Err, dataset.ErrUnavailable) {
		return LabelUnavailable
	}
	return f.Err.Error()
}

// IndicatorUpdate is the per-step ESI record.
type IndicatorUpdate struct {
	Raw      float64 // m/s²; NaN when the step failed
	Smoothed float64 // m/s²
	Gravity  float64 // m/s² per g
	Failure  *StepFailure
}

// Event is one record of a run's event stream. Exactly one of Indicator,
// RUL or Err is set for the matching kind; completion events carry none.
type Event struct {
	Kind      Kind
	Bearing   string
	Step      int
	Indicator *IndicatorUpdate
	RUL       *kalman.RUL
	Err       error
}

// Terminal reports whether no event follows e.
func (e Event) Terminal() bool {
	return e.Kind == KindCompletion || e.Kind == KindError
}

// Failure returns the terminal error event for err.
func Failure(bearing string, err error) Event {
	return Event{Kind: KindError, Bearing: bearing, Err: err}
}

type indicatorRecord struct {
	Type        Kind     `json:"type"`
	Bearing     string   `json:"bearing"`
	Minute      int      `json:"minute"`
	RawMS2      *float64 `json:"value_raw_ms2"`
	RawG        *float64 `json:"value_raw_g"`
	SmoothedMS2 float64  `json:"value_smoothed_ms2"`
	SmoothedG   float64  `json:"value_smoothed_g"`
	Error       *string  `json:"error"`
}

type rulRecord struct {
	Type         Kind     `json:"type"`
	Bearing      string   `json:"bearing"`
	Minute       int      `json:"minute"`
	RULPredicted *float64 `json:"rul_predicted_min"`
	IsInf        bool     `json:"is_inf"`
	IsNaN        bool     `json:"is_nan"`
}

type statusRecord struct {
	Type    Kind   `json:"type"`
	Status  string `json:"status"`
	Bearing string `json:"bearing"`
}

type errorRecord struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON encodes e in the line format consumed by the dashboard.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindIndicator:
		u := e.Indicator
		if u == nil {
			u = &IndicatorUpdate{Raw: math.NaN(), Gravity: 1}
		}
		g := u.Gravity
		if g <= 0 {
			g = 1
		}
		rec := indicatorRecord{
			Type:        e.Kind,
			Bearing:     e.Bearing,
			Minute:      e.Step,
			RawMS2:      finite(u.Raw),
			RawG:        finite(u.Raw / g),
			SmoothedMS2: u.Smoothed,
			SmoothedG:   u.Smoothed / g,
		}
		if u.Failure != nil {
			label := u.Failure.Label()
			rec.Error = &label
		}
		return json.Marshal(rec)
	case KindRUL:
		v := math.NaN()
		if e.RUL != nil {
			v = e.RUL.Value()
		}
		return json.Marshal(rulRecord{
			Type:         e.Kind,
			Bearing:      e.Bearing,
			Minute:       e.Step,
			RULPredicted: finite(v),
			IsInf:        math.IsInf(v, 0),
			IsNaN:        math.IsNaN(v),
		})
	case KindCompletion:
		return json.Marshal(statusRecord{Type: e.Kind, Status: StatusCompleted, Bearing: e.Bearing})
	}
	msg := "unknown error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(errorRecord{Type: KindError, Message: msg})
}
