// Package identity resolves a canonical species ID from the differently
// shaped records the remote service returns. Prediction payloads, catalog
// entries and description matches all normalize through the one prioritized
// rule chain here instead of ad hoc field guessing at call sites.
package identity

import (
	"strings"
)

// Record is the identity-bearing view of a species-shaped payload. Absent
// fields stay empty; Attrs carries whatever else the payload had.
type Record struct {
	SpeciesID      string
	Key            string
	Class          string
	ImagePath      string
	CommonName     string
	ScientificName string
	Attrs          map[string]string
}

// Resolve maps a record to its canonical species ID. Rule order, first
// match wins:
//
//  1. explicitKey supplied by the caller (e.g. the object key in a
//     catalog response)
//  2. the record's species_id field
//  3. the record's key field
//  4. the record's class name
//  5. the species segment of the image path ("data/raw/<id>/...")
//  6. common name + scientific name composite
//
// IDs are opaque strings; both "007.Parakeet_Auklet" and "ADONIS" shapes
// pass through untouched. The second return value is false when no rule
// applies; callers must handle that explicitly.
func Resolve(rec Record, explicitKey string) (string, bool) {
	if explicitKey != "" {
		return explicitKey, true
	}
	if rec.SpeciesID != "" {
		return rec.SpeciesID, true
	}
	if rec.Key != "" {
		return rec.Key, true
	}
	if rec.Class != "" {
		return rec.Class, true
	}
	if id := idFromImagePath(rec.ImagePath); id != "" {
		return id, true
	}
	if rec.CommonName != "" && rec.ScientificName != "" {
		return rec.CommonName + "_" + rec.ScientificName, true
	}
	return "", false
}

// idFromImagePath extracts the species segment from paths shaped like
// "data/raw/001.Black_footed_Albatross/...". Anything else yields "".
func idFromImagePath(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	if len(parts) >= 3 && parts[1] == "raw" {
		return parts[2]
	}
	return ""
}

// FromMap builds a Record from a decoded JSON object, keeping unrecognized
// string fields in Attrs. Used when normalizing catalog payloads whose
// shape is not known ahead of time.
func FromMap(m map[string]any) Record {
	rec := Record{}
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "species_id":
			rec.SpeciesID = s
		case "key":
			rec.Key = s
		case "class":
			rec.Class = s
		case "image_path":
			rec.ImagePath = s
		case "common_name":
			rec.CommonName = s
		case "scientific_name":
			rec.ScientificName = s
		default:
			if rec.Attrs == nil {
				rec.Attrs = make(map[string]string)
			}
			rec.Attrs[k] = s
		}
	}
	return rec
}
