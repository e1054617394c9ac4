package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cafe-review-cli/internal/model"
)

// Input CSV columns.
const (
	ColumnCity        = "City"
	ColumnCafesNeeded = "Cafes Needed"
)

// LoadUnits reads the city list and the city→entry-id mapping. The list is
// CSV, or an Excel workbook when the path ends in .xlsx. Cities without a
// mapping are skipped with a warning. The mapping may be JSON or YAML.
func LoadUnits(inputPath, mappingPath string) ([]model.Unit, error) {
	mapping, err := LoadMapping(mappingPath)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(inputPath), ".xlsx") {
		rows, err := readXLSXRows(inputPath)
		if err != nil {
			return nil, err
		}
		return parseRows(rows, mapping)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open input %s", inputPath)
	}
	defer f.Close() //nolint:errcheck

	return ParseUnits(f, mapping)
}

// LoadMapping reads a city→entry-id mapping file.
func LoadMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read mapping %s", path)
	}
	// YAML is a superset of JSON, so one decoder covers both formats.
	var mapping map[string]string
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse mapping %s", path)
	}
	return mapping, nil
}

// ParseUnits reads units from CSV rows with City and Cafes Needed columns.
func ParseUnits(r io.Reader, mapping map[string]string) ([]model.Unit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read input")
	}
	return parseRows(rows, mapping)
}

// readXLSXRows returns the cell text of the first worksheet.
func readXLSXRows(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open input %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("pipeline: input %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// parseRows maps a header row and data rows onto units.
func parseRows(rows [][]string, mapping map[string]string) ([]model.Unit, error) {
	if len(rows) == 0 {
		return nil, eris.New("pipeline: input is empty")
	}

	cityIdx, countIdx := -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnCity:
			cityIdx = i
		case ColumnCafesNeeded:
			countIdx = i
		}
	}
	if cityIdx < 0 || countIdx < 0 {
		return nil, eris.Errorf("pipeline: input must contain columns %q and %q", ColumnCity, ColumnCafesNeeded)
	}

	var units []model.Unit
	for i, row := range rows[1:] {
		line := i + 2
		if cityIdx >= len(row) || countIdx >= len(row) {
			return nil, eris.Errorf("pipeline: input line %d has %d columns", line, len(row))
		}

		city := strings.TrimSpace(row[cityIdx])
		if city == "" {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(row[countIdx]))
		if err != nil || count < 0 {
			return nil, eris.Errorf("pipeline: input line %d: invalid %s %q", line, ColumnCafesNeeded, row[countIdx])
		}

		ref, ok := mapping[city]
		if !ok || ref == "" {
			zap.L().Warn("pipeline: no mapping for city, skipping", zap.String("unit", city))
			continue
		}
		units = append(units, model.Unit{Name: city, TargetCount: count, ExternalReference: ref})
	}
	return units, nil
}
