package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
)

// CSV reads <root>/<condition>/<bearing>/<step>.csv files holding one
// acceleration sample in g per row under a header row.
type CSV struct {
	catalog
	root string
}

// NewCSV returns a CSV source rooted at root.
func NewCSV(root string, cfg config.Config) *CSV {
	return &CSV{catalog: catalog{cfg: cfg}, root: root}
}

// Path returns the file holding the given step.
func (s *CSV) Path(condition, bearing string, step int) string {
	return filepath.Join(s.root, condition, bearing, strconv.Itoa(step)+".csv")
}

// Signal reads, scales and length-fits one step.
func (s *CSV) Signal(condition, bearing string, step int) ([]float64, error) {
	path := s.Path(condition, bearing, step)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer f.Close()

	samples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	for i := range samples {
		samples[i] *= s.cfg.Gravity
	}
	return FitLength(samples, s.cfg.SignalLength), nil
}

// ReadCSV parses the first column of every row after the header. Cells
// that are not numbers are dropped.
func ReadCSV(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var out []float64
	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
