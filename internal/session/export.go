package session

// Export records carry a resolved, self-contained image per row. A record
// whose image cannot be resolved degrades to a placeholder; one bad image
// never aborts the whole export.

// PlaceholderImageRef marks an export record whose image could not be
// resolved into a self-contained form.
const PlaceholderImageRef = "image-unavailable"

// ExportRecord is one serializable history or favorites row.
type ExportRecord struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	HasWarning  bool    `json:"has_warning"`
	ImageRef    string  `json:"image_ref"`
	Timestamp   string  `json:"timestamp"`
	WarningType string  `json:"warning_type,omitempty"`
}

// ExportRecords converts entries into export rows, resolving each image
// through the store's encoder.
func (s *Store) ExportRecords(entries []Entry) []ExportRecord {
	records := make([]ExportRecord, 0, len(entries))
	for i := range entries {
		records = append(records, s.exportRecord(&entries[i]))
	}
	return records
}

func (s *Store) exportRecord(entry *Entry) ExportRecord {
	rec := ExportRecord{
		ID:         entry.ID,
		Kind:       entry.Kind,
		Class:      entry.Class(),
		HasWarning: entry.HasWarning(),
		Timestamp:  entry.Timestamp.Format("2006-01-02 15:04:05"),
	}
	if entry.Result != nil && entry.Result.Prediction != nil {
		rec.Confidence = entry.Result.Prediction.Confidence
	}
	if entry.Result != nil && entry.Result.Warning != nil {
		rec.WarningType = entry.Result.Warning.Type
	}

	resolved, err := s.encoder(entry.ImageRef)
	if err != nil {
		logger.Warn("export image resolution failed, using placeholder",
			"entry_id", entry.ID, "error", err)
		rec.ImageRef = PlaceholderImageRef
		return rec
	}
	rec.ImageRef = resolved
	return rec
}
