package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/geoderive/internal/domain"
)

// ThreeD is the command-line 3-D request: a search radius and a catalog.
type ThreeD struct {
	MaxDistanceKm float64 `validate:"gt=0"`
	CatalogPath   string  `validate:"required"`
}

// Request holds the derivation options given on the command line.
type Request struct {
	Bundles     []string `validate:"min=1,dive,required"`
	SourceKey   string   `validate:"required"`
	Key         string   `validate:"required,nefield=SourceKey"`
	Replace     bool
	Include     []string `validate:"dive,required"`
	Exclude     []string `validate:"dive,required"`
	Want1D      bool
	ThreeD      *ThreeD `validate:"omitempty"`
	MinQuality  int     `validate:"min=0,max=5"`
	ExcludeAuto bool
}

var validate = validator.New()

// ValidateRequest checks r and reports the first violation as a
// *domain.ConfigurationError.
func ValidateRequest(r Request) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ConfigurationError{Field: strings.TrimPrefix(fe.StructNamespace(), "Request."), Reason: describe(fe)}
	}
	return &domain.ConfigurationError{Field: "request", Reason: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "nefield":
		return "must differ from " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// ParseThreeD parses the "distance,path" form of the -3D flag.
func ParseThreeD(s string) (*ThreeD, error) {
	dist, path, ok := strings.Cut(s, ",")
	if !ok {
		return nil, &domain.ConfigurationError{Field: "3D", Reason: `expected "distance_km,catalog_path"`}
	}
	km, err := strconv.ParseFloat(strings.TrimSpace(dist), 64)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "3D", Reason: "distance is not a number"}
	}
	return &ThreeD{MaxDistanceKm: km, CatalogPath: strings.TrimSpace(path)}, nil
}

// SplitList splits a comma-separated flag value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SelectRequest converts r to the domain selection request.
func (r Request) SelectRequest() domain.SelectRequest {
	sr := domain.SelectRequest{
		Include:             r.Include,
		Exclude:             r.Exclude,
		Want1D:              r.Want1D,
		MinQuality:          r.MinQuality,
		ExcludeAutoSelected: r.ExcludeAuto,
	}
	if r.ThreeD != nil {
		sr.ThreeD = &domain.ThreeDRequest{MaxDistanceKm: r.ThreeD.MaxDistanceKm, CatalogPath: r.ThreeD.CatalogPath}
	}
	return sr
}
