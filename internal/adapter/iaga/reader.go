// Package iaga reads IAGA-2002 geomagnetic data files.
package iaga

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/couchcryptid/geoderive/internal/domain"
)

// Format is the Source value recorded in headers of imported records.
const Format = "IAGA-2002"

const timeLayout = "2006-01-02 15:04:05.000"

// Sentinels for missing (99999) and unrecorded (88888) samples.
const (
	missing    = 99999
	unrecorded = 88888
)

var errNoHorizontal = errors.New("file has neither X/Y nor H/D components")

// ReadFile reads an IAGA-2002 file, decompressing .gz files.
func ReadFile(path string) (*domain.Record, domain.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.Header{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, domain.Header{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	rec, header, err := Read(r)
	if err != nil {
		return nil, domain.Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, header, nil
}

// Read parses an IAGA-2002 stream into a record with Bx, By and, when
// reported, Bz columns in nT. HDZ files are rotated to geographic X/Y with D
// in minutes of arc. Sentinel values become NaN.
func Read(r io.Reader) (*domain.Record, domain.Header, error) {
	header := domain.Header{Source: Format, Extra: map[string]string{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), 1<<20)

	var components []byte
	var index []time.Time
	var values [][]float64
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		switch {
		case components == nil && strings.HasPrefix(text, "DATE"):
			fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(text), "|"))
			if len(fields) < 4 {
				return nil, header, fmt.Errorf("line %d: short column header", line)
			}
			for _, name := range fields[3:] {
				components = append(components, name[len(name)-1])
			}
			values = make([][]float64, len(components))
		case components == nil:
			if err := parseHeaderLine(&header, text); err != nil {
				return nil, header, fmt.Errorf("line %d: %w", line, err)
			}
		default:
			fields := strings.Fields(text)
			if len(fields) != 3+len(components) {
				return nil, header, fmt.Errorf("line %d: expected %d fields, got %d", line, 3+len(components), len(fields))
			}
			t, err := time.ParseInLocation(timeLayout, fields[0]+" "+fields[1], time.UTC)
			if err != nil {
				return nil, header, fmt.Errorf("line %d: %w", line, err)
			}
			index = append(index, t)
			for j, s := range fields[3:] {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, header, fmt.Errorf("line %d: %w", line, err)
				}
				if v >= unrecorded {
					v = math.NaN()
				}
				values[j] = append(values[j], v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, header, err
	}
	if components == nil {
		return nil, header, errors.New("missing DATE column header")
	}

	col := func(c byte) ([]float64, bool) {
		if i := slices.Index(components, c); i >= 0 {
			return values[i], true
		}
		return nil, false
	}

	rec := domain.NewRecord(index)
	if err := rec.ValidateIndex(); err != nil {
		return nil, header, err
	}
	x, okX := col('X')
	y, okY := col('Y')
	if !okX || !okY {
		h, okH := col('H')
		d, okD := col('D')
		if !okH || !okD {
			return nil, header, errNoHorizontal
		}
		x, y = rotateHD(h, d)
	}
	if err := rec.Set(domain.ColumnBx, x); err != nil {
		return nil, header, err
	}
	if err := rec.Set(domain.ColumnBy, y); err != nil {
		return nil, header, err
	}
	if z, ok := col('Z'); ok {
		if err := rec.Set(domain.ColumnBz, z); err != nil {
			return nil, header, err
		}
	}
	return rec, header, nil
}

func rotateHD(h, d []float64) (x, y []float64) {
	x = make([]float64, len(h))
	y = make([]float64, len(h))
	for i := range h {
		rad := d[i] / 60 * math.Pi / 180
		x[i] = h[i] * math.Cos(rad)
		y[i] = h[i] * math.Sin(rad)
	}
	return x, y
}

func parseHeaderLine(h *domain.Header, text string) error {
	if strings.HasPrefix(strings.TrimSpace(text), "#") {
		return nil
	}
	body := strings.TrimSuffix(strings.TrimRight(text, " "), "|")
	if len(body) < 24 {
		return nil
	}
	label := strings.TrimSpace(body[:24])
	value := strings.TrimSpace(body[24:])

	var err error
	switch strings.ToLower(label) {
	case "iaga code":
		h.Station = value
	case "geodetic latitude":
		h.GeodeticLatitude, err = strconv.ParseFloat(value, 64)
	case "geodetic longitude":
		var lon float64
		lon, err = strconv.ParseFloat(value, 64)
		h.GeodeticLongitude = normalizeLongitude(lon)
	case "elevation":
		h.Elevation, err = strconv.ParseFloat(value, 64)
	case "format":
	default:
		if label != "" {
			h.Extra[strings.ToLower(strings.ReplaceAll(label, " ", "_"))] = value
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	return nil
}

// normalizeLongitude maps a longitude into (-180, 180].
func normalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return lon
}

// Concat joins records of the same station in time order. Every part must
// carry the same columns.
func Concat(parts []*domain.Record) (*domain.Record, error) {
	if len(parts) == 0 {
		return nil, errors.New("concat: no records")
	}
	parts = slices.Clone(parts)
	slices.SortFunc(parts, func(a, b *domain.Record) int {
		if a.Len() == 0 || b.Len() == 0 {
			return a.Len() - b.Len()
		}
		return a.Index()[0].Compare(b.Index()[0])
	})

	columns := parts[0].Columns()
	var index []time.Time
	data := make([][]float64, len(columns))
	for _, p := range parts {
		if !slices.Equal(p.Columns(), columns) {
			return nil, fmt.Errorf("concat: columns %v differ from %v", p.Columns(), columns)
		}
		index = append(index, p.Index()...)
		for j, name := range columns {
			v, _ := p.Column(name)
			data[j] = append(data[j], v...)
		}
	}

	rec := domain.NewRecord(index)
	if err := rec.ValidateIndex(); err != nil {
		return nil, fmt.Errorf("concat: %w", err)
	}
	for j, name := range columns {
		if err := rec.Set(name, data[j]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
