// Command stec computes slant total electron content between a ground station
// and a satellite through a Chapman-layer electron density profile.
//
// Positions are ECEF coordinates in km, or geodetic "lat,lon,height_km" with -llh:
//
//	stec -station 4696.986004,723.992717,4239.681595 -sat 10741.320824,12456.414622,21019.082339
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/geoderive/internal/config"
	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/geodesy"
	"github.com/couchcryptid/geoderive/internal/ionosphere"
	"github.com/couchcryptid/geoderive/internal/observability"
	"github.com/couchcryptid/geoderive/internal/slant"
)

func main() {
	os.Exit(run())
}

type options struct {
	station geodesy.Position
	sat     geodesy.Position
	at      time.Time
	layer   ionosphere.Chapman
	stec    ionosphere.Options
}

// output is the JSON document written to stdout.
type output struct {
	Time        time.Time `json:"time"`
	STEC        float64   `json:"stec_tecu"`
	AbsErr      float64   `json:"abs_err_tecu"`
	Evaluations int       `json:"evaluations"`
	Converged   bool      `json:"converged"`
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("stec", flag.ContinueOnError)
	var (
		station, sat, at string
		llh              bool
		hmF2Km, scaleKm  float64
		alt1Km, alt2Km   float64
		o                options
	)
	def := ionosphere.DefaultOptions()
	fs.StringVar(&station, "station", "", "station position")
	fs.StringVar(&sat, "sat", "", "satellite position")
	fs.BoolVar(&llh, "llh", false, `positions are "lat,lon,height_km" instead of ECEF km`)
	fs.StringVar(&at, "time", "", "epoch (RFC 3339, default now)")
	fs.Float64Var(&o.layer.NmF2, "nmf2", ionosphere.DefaultChapman.NmF2, "peak electron density (el/m^3)")
	fs.Float64Var(&hmF2Km, "hmf2", ionosphere.DefaultChapman.HmF2M/1e3, "peak height (km)")
	fs.Float64Var(&scaleKm, "scale-height", ionosphere.DefaultChapman.ScaleHeightM/1e3, "scale height (km)")
	fs.Float64Var(&alt1Km, "alt1", def.Alt1M/1e3, "lower integration height (km)")
	fs.Float64Var(&alt2Km, "alt2", def.Alt2M/1e3, "upper integration height (km)")
	fs.Float64Var(&o.stec.EpsAbsTEC, "epsabs", def.EpsAbsTEC, "absolute tolerance (TECU)")
	fs.Float64Var(&o.stec.EpsRel, "epsrel", def.EpsRel, "relative tolerance")
	fs.IntVar(&o.stec.Limit, "limit", def.Limit, "maximum quadrature subintervals")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	var err error
	if o.station, err = parsePosition("station", station, llh); err != nil {
		return options{}, err
	}
	if o.sat, err = parsePosition("sat", sat, llh); err != nil {
		return options{}, err
	}
	if at != "" {
		if o.at, err = time.Parse(time.RFC3339, at); err != nil {
			return options{}, &domain.ConfigurationError{Field: "time", Reason: "must be RFC 3339"}
		}
	}
	if o.layer.NmF2 <= 0 || scaleKm <= 0 {
		return options{}, &domain.ConfigurationError{Field: "chapman", Reason: "nmf2 and scale-height must be positive"}
	}
	if alt1Km >= alt2Km {
		return options{}, &domain.ConfigurationError{Field: "alt1", Reason: "must be below alt2"}
	}
	o.layer.HmF2M = hmF2Km * 1e3
	o.layer.ScaleHeightM = scaleKm * 1e3
	o.stec.Alt1M = alt1Km * 1e3
	o.stec.Alt2M = alt2Km * 1e3
	return o, nil
}

func parsePosition(field, s string, llh bool) (geodesy.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geodesy.Position{}, &domain.ConfigurationError{Field: field, Reason: "expected three comma-separated numbers"}
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geodesy.Position{}, &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf("%q is not a number", p)}
		}
		v[i] = f
	}
	if llh {
		return geodesy.FromLLH(v[0], v[1], v[2]*1e3), nil
	}
	return geodesy.Position{X: v[0] * 1e3, Y: v[1] * 1e3, Z: v[2] * 1e3}, nil
}

func run() int {
	o, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if o.at.IsZero() {
		o.at = time.Now().UTC()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger := observability.NewLogger(cfg)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	code := compute(os.Stdout, o, logger, metrics)

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, registry); err != nil {
			logger.Error("metrics textfile write error", "error", err)
		}
	}
	return code
}

// compute integrates, writes the JSON result to w and returns the exit code.
// A result that missed its tolerance is still written, with converged=false.
func compute(w io.Writer, o options, logger *slog.Logger, metrics *observability.Metrics) int {
	model := ionosphere.NewClamped(o.layer, logger, metrics.ClampedSamples.Inc)
	res, err := ionosphere.STEC(model, o.at, o.station, o.sat, o.stec)
	metrics.IntegrandEvaluations.Add(float64(res.Evaluations))

	converged := true
	switch {
	case errors.Is(err, slant.ErrMaxSubdivisions):
		converged = false
		logger.Warn("tolerance not reached", "abs_err_tecu", res.AbsErrTEC, "limit", o.stec.Limit)
	case err != nil:
		logger.Error("stec failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(output{
		Time:        o.at,
		STEC:        res.TEC,
		AbsErr:      res.AbsErrTEC,
		Evaluations: res.Evaluations,
		Converged:   converged,
	}); err != nil {
		logger.Error("write result", "error", err)
		return 1
	}
	return 0
}
