// Package export writes a final result set to disk. The search core owns no
// persistence; this is the file-output collaborator consuming its records.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/catastropr/gridsearch/internal/core/model"
)

// WriteFile saves records as CSV or JSON depending on the file extension.
func WriteFile(path string, records []model.PropertyRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSV(path, records)
	case ".json":
		return writeJSON(path, records)
	default:
		return model.InvalidArgumentf("unsupported output extension %q (want .csv or .json)", filepath.Ext(path))
	}
}

func writeJSON(path string, records []model.PropertyRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []model.PropertyRecord{}
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func writeCSV(path string, records []model.PropertyRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := columns(records)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = cellString(rec[col])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// leadColumns come first in CSV output; the rest of the union of keys
// follows alphabetically.
var leadColumns = []string{
	model.FieldObjectID,
	model.FieldCatastro,
	model.FieldMunicipio,
	model.FieldSaleAmt,
	model.FieldSaleDateFmt,
	model.FieldDistanceMiles,
	model.FieldDistanceKM,
}

func columns(records []model.PropertyRecord) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for _, lead := range leadColumns {
		if _, ok := seen[lead]; ok {
			out = append(out, lead)
			delete(seen, lead)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
