package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gopxl/beep/v2/wav"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
)

// WAV reads <root>/<condition>/<bearing>/<step>.wav recordings. The left
// channel is used; full scale corresponds to WAVFullScale g.
type WAV struct {
	catalog
	root string
}

// NewWAV returns a WAV source rooted at root.
func NewWAV(root string, cfg config.Config) *WAV {
	return &WAV{catalog: catalog{cfg: cfg}, root: root}
}

// Path returns the file holding the given step.
func (s *WAV) Path(condition, bearing string, step int) string {
	return filepath.Join(s.root, condition, bearing, strconv.Itoa(step)+".wav")
}

// Signal decodes, scales and length-fits one step.
func (s *WAV) Signal(condition, bearing string, step int) ([]float64, error) {
	path := s.Path(condition, bearing, step)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	streamer, _, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	defer streamer.Close()

	scale := s.cfg.WAVFullScale * s.cfg.Gravity
	out := make([]float64, 0, s.cfg.SignalLength)
	buf := make([][2]float64, 4096)
	for len(out) < s.cfg.SignalLength {
		n, ok := streamer.Stream(buf)
		for _, smp := range buf[:n] {
			out = append(out, smp[0]*scale)
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	return FitLength(out, s.cfg.SignalLength), nil
}
