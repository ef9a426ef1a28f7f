package ingest

// row.go turns one parsed feature into a delimited record for the bulk-copy
// stream. This is pure encoding: no I/O, no shared state.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"geosink/internal/wkt"
)

// geometryNull is what a feature without geometry sends through the spatial
// column. It is emitted unquoted so the copy stream's NULL marker matches.
const geometryNull = "NULL"

// encodeRow produces the CSV record "name,properties,geometry\n" for a
// feature at zero-based position idx within its source file.
//
// A feature with no geometry encodes a null spatial value, never an error.
// Geometry and properties failures come back as an *EncodeError attributed
// to the feature.
func encodeRow(f *geojson.Feature, idx int) (string, error) {
	name := featureName(f, idx)

	properties, err := json.Marshal(f.Properties)
	if err != nil {
		return "", &EncodeError{Name: name, Index: idx, Err: fmt.Errorf("serialize properties: %w", err)}
	}

	geometry := geometryNull
	if f.Geometry != nil {
		geometry, err = wkt.Encode(f.Geometry)
		if err != nil {
			return "", &EncodeError{Name: name, Index: idx, Err: err}
		}
		geometry = escapeField(geometry)
	}

	return escapeField(name) + "," + escapeField(string(properties)) + "," + geometry + "\n", nil
}

// featureName resolves the record's unique name: a string id verbatim, a
// numeric id in decimal text, or a positional fallback when the id is
// absent.
func featureName(f *geojson.Feature, idx int) string {
	switch id := f.ID.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprintf("unknown_%d", idx)
	}
}

// escapeField applies CSV quoting: a field containing a comma, a double
// quote, or a newline is wrapped in double quotes with internal quotes
// doubled; anything else passes through verbatim.
func escapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
