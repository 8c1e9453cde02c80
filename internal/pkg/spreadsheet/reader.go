package spreadsheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/pkg/apperrors"
)

// RequiredColumns must be present in every survey export.
var RequiredColumns = []string{"personal_code", "course_id", "pre_post", "start", "end", "privacy", "qcontrol"}

// Reader turns a survey export into header-keyed rows.
type Reader struct{}

// NewReader creates a new reader
func NewReader() *Reader {
	return &Reader{}
}

// Read parses an export. The format is chosen by the file name extension:
// .csv is read as comma separated text, anything else as an xlsx workbook.
func (p *Reader) Read(ctx context.Context, name string, r io.Reader) ([]models.RawRow, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		rows, err = readCSV(r)
	} else {
		rows, err = readWorkbook(r)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return toRawRows(rows)
}

func readWorkbook(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", apperrors.ErrInvalidFileFormat, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.ErrInvalidFileFormat
	}

	// Raw values keep dates as serial numbers instead of locale formatted text.
	rows, err := file.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidFileFormat, err)
	}
	return rows, nil
}

func toRawRows(rows [][]string) ([]models.RawRow, error) {
	if len(rows) < 1 {
		return nil, apperrors.ErrInvalidFileFormat
	}

	header := rows[0]
	columnMap := make(map[string]int, len(header))
	for i, col := range header {
		columnMap[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range RequiredColumns {
		if _, exists := columnMap[col]; !exists {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingColumn, col)
		}
	}

	out := make([]models.RawRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		cells := make(map[string]string, len(columnMap))
		for col, idx := range columnMap {
			if idx < len(row) {
				cells[col] = strings.TrimSpace(row[idx])
			} else {
				cells[col] = ""
			}
		}
		// i+2: one-based and header skipped
		out = append(out, models.RawRow{Number: i + 2, Cells: cells})
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
