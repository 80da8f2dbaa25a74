package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/detector"
)

func baseOptions(t *testing.T) options {
	return options{
		basePath: t.TempDir(),
		format:   "csv",
		fdt:      detector.DefaultParams(),
		logLevel: "error",
	}
}

func TestRunReportsSetupFailures(t *testing.T) {
	tests := []struct {
		name    string
		bearing string
		modify  func(*options)
		message string
		is      error
	}{
		{
			name:    "missing config file",
			bearing: "Bearing1_2",
			modify:  func(o *options) { o.configPath = filepath.Join(t.TempDir(), "absent.yaml") },
			message: "read config",
		},
		{
			name:    "unsupported format",
			bearing: "Bearing1_2",
			modify:  func(o *options) { o.format = "flac" },
			message: `unsupported dataset format "flac"`,
		},
		{
			name:    "bad log level",
			bearing: "Bearing1_2",
			modify:  func(o *options) { o.logLevel = "loud" },
			message: "loud",
		},
		{
			name:    "invalid detection parameters",
			bearing: "Bearing1_2",
			modify: func(o *options) {
				o.useCustomFdt = true
				o.fdt.PersistenceLen = 0
			},
			message: "persistence length",
			is:      detector.ErrInvalidParams,
		},
		{
			name:    "unknown bearing",
			bearing: "Bearing9_9",
			modify:  func(*options) {},
			message: "Bearing9_9",
			is:      dataset.ErrUnknownBearing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions(t)
			tt.modify(&opts)

			var out bytes.Buffer
			err := run(context.Background(), tt.bearing, opts, false, &out)
			require.Error(t, err)
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
			}

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			require.Len(t, lines, 1)
			var rec struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
			require.Equal(t, "error", rec.Type)
			require.Contains(t, rec.Message, tt.message)
			require.Equal(t, err.Error(), rec.Message)
		})
	}
}
