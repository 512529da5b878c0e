// Package storage persists run output: grants as JSON/JSONL files and the
// processed-ID set supporting incremental mode.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/logger"
)

// Writer writes grant records into an output directory
type Writer struct {
	dir string
	log *logger.Logger
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string) *Writer {
	return &Writer{
		dir: dir,
		log: logger.ForComponent("storage"),
	}
}

// timestampName builds grants_<stamp>.<ext>
func timestampName(ext string) string {
	return "grants_" + time.Now().Format("20060102_150405") + "." + ext
}

// SaveJSON writes all records into one indented JSON array file and
// returns its path
func (w *Writer) SaveJSON(grants []*grant.Grant) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}

	records := make([]map[string]interface{}, 0, len(grants))
	for _, g := range grants {
		records = append(records, g.OutputRecord())
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(w.dir, timestampName("json"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	w.log.Info().Str("path", path).Int("grants", len(grants)).Msg("saved json")
	return path, nil
}

// SaveJSONL writes one record per line and returns the file path
func (w *Writer) SaveJSONL(grants []*grant.Grant) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(w.dir, timestampName("jsonl"))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, g := range grants {
		if err := enc.Encode(g.OutputRecord()); err != nil {
			return "", err
		}
	}

	w.log.Info().Str("path", path).Int("grants", len(grants)).Msg("saved jsonl")
	return path, nil
}
