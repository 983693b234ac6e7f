// Package emtf reads EMTF XML transfer functions and serves them as a
// spatially-registered model catalog.
package emtf

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/couchcryptid/geoderive/internal/transfer"
)

// TransferFunction is one EMTF XML document.
type TransferFunction struct {
	ProductID string
	Latitude  float64
	Longitude float64
	Elevation float64
	Rating    int
	Periods   []float64 // seconds
	Z         []transfer.Matrix
}

type document struct {
	ProductID      string `xml:"ProductId"`
	SignConvention string `xml:"ProcessingInfo>SignConvention"`
	Site           struct {
		Location struct {
			Latitude  float64 `xml:"Latitude"`
			Longitude float64 `xml:"Longitude"`
			Elevation float64 `xml:"Elevation"`
		} `xml:"Location"`
		Rating string `xml:"DataQualityNotes>Rating"`
	} `xml:"Site"`
	Periods []struct {
		Value  float64 `xml:"value,attr"`
		Values []struct {
			Name string `xml:"name,attr"`
			Text string `xml:",chardata"`
		} `xml:"Z>value"`
	} `xml:"Data>Period"`
}

// Parse decodes an EMTF XML document. Impedances published with the
// exp(-iωt) convention are conjugated to exp(+iωt). Periods without a
// complete Z tensor are dropped.
func Parse(r io.Reader) (*TransferFunction, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode emtf xml: %w", err)
	}
	if doc.ProductID == "" {
		return nil, fmt.Errorf("decode emtf xml: missing ProductId")
	}

	tf := &TransferFunction{
		ProductID: strings.TrimSpace(doc.ProductID),
		Latitude:  doc.Site.Location.Latitude,
		Longitude: doc.Site.Location.Longitude,
		Elevation: doc.Site.Location.Elevation,
	}
	if s := strings.TrimSpace(doc.Site.Rating); s != "" {
		rating, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("decode emtf xml: rating %q: %w", s, err)
		}
		tf.Rating = rating
	}
	conjugate := strings.Contains(doc.SignConvention, "-")

	for _, p := range doc.Periods {
		var m transfer.Matrix
		seen := 0
		for _, v := range p.Values {
			z, err := parseComplex(v.Text)
			if err != nil {
				return nil, fmt.Errorf("decode emtf xml: period %g %s: %w", p.Value, v.Name, err)
			}
			if conjugate {
				z = complex(real(z), -imag(z))
			}
			switch strings.ToLower(v.Name) {
			case "zxx":
				m.XX = z
			case "zxy":
				m.XY = z
			case "zyx":
				m.YX = z
			case "zyy":
				m.YY = z
			default:
				continue
			}
			seen++
		}
		if seen != 4 || !(p.Value > 0) {
			continue
		}
		tf.Periods = append(tf.Periods, p.Value)
		tf.Z = append(tf.Z, m)
	}
	return tf, nil
}

func parseComplex(s string) (complex128, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("expected \"re im\", got %q", s)
	}
	re, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	im, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, err
	}
	return complex(re, im), nil
}

// ReadFile parses an EMTF XML file, decompressing .gz files.
func ReadFile(path string) (*TransferFunction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	tf, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

// Tensor returns the tabulated impedance tensor.
func (tf *TransferFunction) Tensor() (*transfer.Tabulated, error) {
	t, err := transfer.NewTabulated(tf.Periods, tf.Z)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tf.ProductID, err)
	}
	return t, nil
}
