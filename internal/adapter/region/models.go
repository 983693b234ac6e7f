package region

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/transfer"
)

// ErrUnknownModel means no layered model is configured for a region.
var ErrUnknownModel = errors.New("unknown region model")

type layerSpec struct {
	ThicknessM      float64 `yaml:"thickness_m"`
	ResistivityOhmM float64 `yaml:"resistivity_ohm_m"`
}

type modelFile struct {
	Models map[string]struct {
		Layers []layerSpec `yaml:"layers"`
	} `yaml:"models"`
}

// Models maps normalized region names to layered-earth conductivity models.
type Models struct {
	byName map[string]transfer.LayeredEarth
}

// LoadModels reads a YAML model file of the form
//
//	models:
//	  Rocky_Mountains:
//	    layers:
//	      - {thickness_m: 15000, resistivity_ohm_m: 500}
//	      - {resistivity_ohm_m: 10}
//
// Region names are normalized the same way classified regions are.
func LoadModels(path string) (*Models, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region models: %w", err)
	}
	return ParseModels(data)
}

// ParseModels decodes and validates a YAML model file.
func ParseModels(data []byte) (*Models, error) {
	var f modelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode region models: %w", err)
	}
	m := &Models{byName: make(map[string]transfer.LayeredEarth, len(f.Models))}
	for name, spec := range f.Models {
		model := transfer.LayeredEarth{Layers: make([]transfer.Layer, len(spec.Layers))}
		for i, l := range spec.Layers {
			model.Layers[i] = transfer.Layer{ThicknessM: l.ThicknessM, ResistivityOhmM: l.ResistivityOhmM}
		}
		if err := model.Validate(); err != nil {
			return nil, fmt.Errorf("region model %q: %w", name, err)
		}
		m.byName[domain.NormalizeRegionName(name)] = model
	}
	return m, nil
}

// Model returns the layered model for a region.
func (m *Models) Model(name string) (transfer.LayeredEarth, bool) {
	model, ok := m.byName[name]
	return model, ok
}

// ApplyRegion applies the region's 1-D impedance to (Bx, By).
func (m *Models) ApplyRegion(ctx context.Context, bx, by []float64, interval time.Duration, name string) ([]float64, []float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	model, ok := m.byName[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return transfer.Apply(bx, by, interval, model)
}
