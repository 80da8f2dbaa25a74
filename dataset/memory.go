package dataset

import (
	"fmt"
	"slices"
	"sync"
)

type signalKey struct {
	condition, bearing string
	step               int
}

// Memory is a Source backed by maps. It is safe for concurrent use.
// Signals are returned as stored unless a length is set with SetLength.
type Memory struct {
	mu      sync.RWMutex
	meta    map[string]Metadata
	signals map[signalKey][]float64
	length  int
}

// NewMemory returns an empty Memory source.
func NewMemory() *Memory {
	return &Memory{
		meta:    make(map[string]Metadata),
		signals: make(map[signalKey][]float64),
	}
}

// SetLength makes Signal fit every signal to n samples, as the file
// sources do with the configured signal length. n <= 0 turns fitting off.
func (m *Memory) SetLength(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.length = max(0, n)
}

// AddBearing registers metadata for a bearing.
func (m *Memory) AddBearing(meta Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[meta.Bearing] = meta
}

// Put stores a copy of the signal for one step.
func (m *Memory) Put(condition, bearing string, step int, signal []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[signalKey{condition, bearing, step}] = slices.Clone(signal)
}

// Signal returns a copy of the stored signal, fitted to the set length.
func (m *Memory) Signal(condition, bearing string, step int) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig, ok := m.signals[signalKey{condition, bearing, step}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s step %d", ErrUnavailable, condition, bearing, step)
	}
	if m.length > 0 {
		return FitLength(sig, m.length), nil
	}
	return slices.Clone(sig), nil
}

// Metadata returns the registered metadata.
func (m *Memory) Metadata(bearing string) (Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.meta[bearing]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrUnknownBearing, bearing)
	}
	return meta, nil
}
