// Package ingest turns directory exports into business records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// Skipped records a row or feature that could not be imported.
type Skipped struct {
	Index  int
	Reason string
}

// ID derives the stable directory id of an imported record.
func ID(source, externalID string) string {
	return source + ":" + externalID
}

// ParseGeoJSON reads a FeatureCollection. Non-point geometries are placed at
// the center of their bounds. Features without an id or name are skipped.
func ParseGeoJSON(data []byte, source string) ([]domain.Business, []Skipped, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse geojson: %w", err)
	}

	var out []domain.Business
	var skipped []Skipped
	for i, f := range fc.Features {
		if f.Geometry == nil {
			skipped = append(skipped, Skipped{i, "no geometry"})
			continue
		}
		var pt orb.Point
		switch g := f.Geometry.(type) {
		case orb.Point:
			pt = g
		default:
			pt = g.Bound().Center()
		}

		props := f.Properties
		ext := featureID(f)
		b := domain.Business{
			ExternalID:   ext,
			Source:       source,
			Name:         str(props, "name"),
			Address:      str(props, "address"),
			City:         str(props, "city"),
			Country:      str(props, "country"),
			Email:        str(props, "email"),
			Website:      str(props, "website"),
			SecondaryURL: str(props, "secondary_url", "secondaryUrl"),
			Logo:         str(props, "logo"),
			Industry:     str(props, "industry"),
			Description:  str(props, "description"),
			Images:       stringList(props["images"]),
			Location:     domain.Coordinate{Latitude: pt.Lat(), Longitude: pt.Lon()},
		}
		if reason := check(b); reason != "" {
			skipped = append(skipped, Skipped{i, reason})
			continue
		}
		b.ID = ID(source, ext)
		out = append(out, b)
	}
	return out, skipped, nil
}

func featureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	if s, ok := f.Properties["id"].(string); ok {
		return s
	}
	return ""
}

func str(props geojson.Properties, keys ...string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok {
			return s
		}
	}
	return ""
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, x := range list {
		if s, ok := x.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// check returns why b cannot be stored, or "".
func check(b domain.Business) string {
	switch {
	case b.ExternalID == "":
		return "missing id"
	case strings.TrimSpace(b.Name) == "":
		return "missing name"
	case !b.Location.Valid():
		return "coordinate out of range"
	}
	return ""
}

// ParseCSV reads a header row followed by records. The id, name, latitude
// and longitude columns are required; images are separated by '|'.
func ParseCSV(r io.Reader, source string) ([]domain.Business, []Skipped, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, req := range []string{"id", "name", "latitude", "longitude"} {
		if _, ok := cols[req]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", req)
		}
	}

	var out []domain.Business
	var skipped []Skipped
	for i := 0; ; i++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped = append(skipped, Skipped{i, err.Error()})
			continue
		}
		get := func(name string) string { return getField(rec, cols, name) }

		lat, errLat := strconv.ParseFloat(get("latitude"), 64)
		lng, errLng := strconv.ParseFloat(get("longitude"), 64)
		if errLat != nil || errLng != nil {
			skipped = append(skipped, Skipped{i, "unparseable coordinate"})
			continue
		}
		var images []string
		if v := get("images"); v != "" {
			images = strings.Split(v, "|")
		}
		b := domain.Business{
			ExternalID:   get("id"),
			Source:       source,
			Name:         get("name"),
			Address:      get("address"),
			City:         get("city"),
			Country:      get("country"),
			Email:        get("email"),
			Website:      get("website"),
			SecondaryURL: get("secondary_url"),
			Logo:         get("logo"),
			Images:       images,
			Industry:     get("industry"),
			Description:  get("description"),
			Location:     domain.Coordinate{Latitude: lat, Longitude: lng},
		}
		if reason := check(b); reason != "" {
			skipped = append(skipped, Skipped{i, reason})
			continue
		}
		b.ID = ID(source, b.ExternalID)
		out = append(out, b)
	}
	return out, skipped, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	if idx, ok := cols[name]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
