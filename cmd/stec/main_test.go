package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/observability"
)

var referenceArgs = []string{
	"-station", "4696.986004,723.992717,4239.681595",
	"-sat", "10741.320824,12456.414622,21019.082339",
	"-time", "2010-01-01T00:00:00Z",
}

func TestParseOptions_Defaults(t *testing.T) {
	o, err := parseOptions(referenceArgs)
	require.NoError(t, err)

	assert.InDelta(t, 4696986.004, o.station.X, 1e-6)
	assert.InDelta(t, 21019082.339, o.sat.Z, 1e-6)
	assert.Equal(t, 2010, o.at.Year())
	assert.InDelta(t, 100e3, o.stec.Alt1M, 0)
	assert.InDelta(t, 2000e3, o.stec.Alt2M, 0)
	assert.InDelta(t, 350e3, o.layer.HmF2M, 0)
	assert.InDelta(t, 60e3, o.layer.ScaleHeightM, 0)
}

func TestParseOptions_LLH(t *testing.T) {
	o, err := parseOptions([]string{"-llh", "-station", "0,0,0", "-sat", "0,0,20200"})
	require.NoError(t, err)
	assert.InDelta(t, 6378137.0, o.station.X, 1e-6)
	assert.InDelta(t, 6378137.0+20200e3, o.sat.X, 1e-6)
}

func TestParseOptions_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"missing station", []string{"-sat", "1,2,3"}, "station"},
		{"bad sat", []string{"-station", "1,2,3", "-sat", "1,x,3"}, "sat"},
		{"bad time", append([]string{"-time", "yesterday"}, referenceArgs[:4]...), "time"},
		{"inverted band", append([]string{"-alt1", "900", "-alt2", "500"}, referenceArgs...), "alt1"},
		{"zero scale height", append([]string{"-scale-height", "0"}, referenceArgs...), "chapman"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOptions(tt.args)
			var cerr *domain.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestCompute_ReferenceGeometry(t *testing.T) {
	o, err := parseOptions(referenceArgs)
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var buf bytes.Buffer
	require.Equal(t, 0, compute(&buf, o, logger, metrics))

	var out output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.True(t, out.Converged)
	assert.Greater(t, out.STEC, 0.0)
	assert.Positive(t, out.Evaluations)
	assert.InDelta(t, float64(out.Evaluations), testutil.ToFloat64(metrics.IntegrandEvaluations), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ClampedSamples), 0)
}

func TestCompute_NotConverged(t *testing.T) {
	o, err := parseOptions(append([]string{"-limit", "1", "-epsabs", "1e-9", "-epsrel", "1e-12"}, referenceArgs...))
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var buf bytes.Buffer
	require.Equal(t, 0, compute(&buf, o, logger, metrics))

	var out output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.False(t, out.Converged)
	assert.Greater(t, out.STEC, 0.0)
}
