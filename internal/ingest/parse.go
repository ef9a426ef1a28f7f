package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// parseFeatureCollection decodes GeoJSON source bytes. A FeatureCollection
// is the only accepted top-level shape; a bare Feature, Geometry, or any
// other JSON document is a hard parse failure. path is used only for error
// attribution.
func parseFeatureCollection(path string, data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if head.Type != "FeatureCollection" {
		return nil, &ParseError{
			Path: path,
			Err:  fmt.Errorf("top-level type is %q, want FeatureCollection", head.Type),
		}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return fc, nil
}
