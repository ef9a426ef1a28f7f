// Package wkt converts planar GeoJSON geometries to their Well-Known Text
// representation for insertion into a spatial database column.
//
// Only the six simple-feature variants are supported: Point, MultiPoint,
// LineString, MultiLineString, Polygon, and MultiPolygon. Anything else
// (GeometryCollection, bounds) is rejected with UnsupportedGeometryError
// rather than encoded partially. Coordinates are emitted x then y using the
// shortest decimal form that round-trips a float64.
package wkt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// UnsupportedGeometryError is returned when a geometry variant outside the
// planar simple-feature set is encountered.
type UnsupportedGeometryError struct {
	// Type is the GeoJSON type name of the offending geometry,
	// e.g. "GeometryCollection".
	Type string
}

func (e *UnsupportedGeometryError) Error() string {
	return fmt.Sprintf("unsupported geometry type: %s", e.Type)
}

// EmptyGeometryError is returned when a geometry contains an empty
// coordinate sequence at any nesting level. Empty sequences are a data
// error, never silently dropped.
type EmptyGeometryError struct {
	// Type is the GeoJSON type name of the geometry holding the empty
	// sequence.
	Type string
}

func (e *EmptyGeometryError) Error() string {
	return fmt.Sprintf("empty coordinate sequence in %s geometry", e.Type)
}

// Encode returns the WKT form of g.
//
// The encoder trusts its input beyond emptiness checks: polygon rings are
// assumed to already be closed and are not validated.
func Encode(g orb.Geometry) (string, error) {
	switch geom := g.(type) {
	case orb.Point:
		return "POINT(" + formatPoint(geom) + ")", nil

	case orb.MultiPoint:
		if len(geom) == 0 {
			return "", &EmptyGeometryError{Type: geom.GeoJSONType()}
		}
		var b strings.Builder
		b.WriteString("MULTIPOINT(")
		for i, p := range geom {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(" + formatPoint(p) + ")")
		}
		b.WriteString(")")
		return b.String(), nil

	case orb.LineString:
		body, err := formatLine(geom, geom.GeoJSONType())
		if err != nil {
			return "", err
		}
		return "LINESTRING(" + body + ")", nil

	case orb.MultiLineString:
		if len(geom) == 0 {
			return "", &EmptyGeometryError{Type: geom.GeoJSONType()}
		}
		var b strings.Builder
		b.WriteString("MULTILINESTRING(")
		for i, line := range geom {
			if i > 0 {
				b.WriteString(", ")
			}
			body, err := formatLine(line, geom.GeoJSONType())
			if err != nil {
				return "", err
			}
			b.WriteString("(" + body + ")")
		}
		b.WriteString(")")
		return b.String(), nil

	case orb.Polygon:
		body, err := formatPolygon(geom, geom.GeoJSONType())
		if err != nil {
			return "", err
		}
		return "POLYGON(" + body + ")", nil

	case orb.MultiPolygon:
		if len(geom) == 0 {
			return "", &EmptyGeometryError{Type: geom.GeoJSONType()}
		}
		var b strings.Builder
		b.WriteString("MULTIPOLYGON(")
		for i, poly := range geom {
			if i > 0 {
				b.WriteString(", ")
			}
			body, err := formatPolygon(poly, geom.GeoJSONType())
			if err != nil {
				return "", err
			}
			b.WriteString("(" + body + ")")
		}
		b.WriteString(")")
		return b.String(), nil

	case orb.Bound:
		// Bound reports its GeoJSON type as Polygon; name it honestly.
		return "", &UnsupportedGeometryError{Type: "Bound"}

	case nil:
		return "", &UnsupportedGeometryError{Type: "nil"}

	default:
		return "", &UnsupportedGeometryError{Type: g.GeoJSONType()}
	}
}

// formatPoint renders "x y" without surrounding parentheses.
func formatPoint(p orb.Point) string {
	return formatFloat(p[0]) + " " + formatFloat(p[1])
}

// formatLine renders a comma-joined coordinate list. geoType is only used
// for error attribution.
func formatLine(line orb.LineString, geoType string) (string, error) {
	if len(line) == 0 {
		return "", &EmptyGeometryError{Type: geoType}
	}
	var b strings.Builder
	for i, p := range line {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatPoint(p))
	}
	return b.String(), nil
}

// formatPolygon renders "(ring1), (ring2), ..." where the first ring is the
// exterior and the rest are holes. Rings are not checked for closure.
func formatPolygon(poly orb.Polygon, geoType string) (string, error) {
	if len(poly) == 0 {
		return "", &EmptyGeometryError{Type: geoType}
	}
	var b strings.Builder
	for i, ring := range poly {
		if i > 0 {
			b.WriteString(", ")
		}
		body, err := formatLine(orb.LineString(ring), geoType)
		if err != nil {
			return "", err
		}
		b.WriteString("(" + body + ")")
	}
	return b.String(), nil
}

// formatFloat renders the shortest decimal representation that round-trips
// the value, without scientific notation.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
