// Package export writes a ResultSet as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"mapsleads/internal/scraper"
)

// SheetName is the worksheet holding the records in XLSX output.
const SheetName = "data"

// Format of an export.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat maps a name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "", "csv":
		return CSV, nil
	case "xlsx", "excel":
		return XLSX, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write writes rs to w in format f.
func Write(w io.Writer, f Format, rs scraper.ResultSet) error {
	if f == XLSX {
		return WriteXLSX(w, rs)
	}
	return WriteCSV(w, rs)
}

// WriteCSV writes a UTF-8 BOM, the header row and one row per record.
func WriteCSV(w io.Writer, rs scraper.ResultSet) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(scraper.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(rs.Rows()); err != nil {
		return err
	}
	return cw.Error()
}

// WriteXLSX writes the records into sheet SheetName of a new workbook.
func WriteXLSX(w io.Writer, rs scraper.ResultSet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	rows := append([][]string{scraper.Columns}, rs.Rows()...)
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("export: cell name: %w", err)
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("export: set %s: %w", cell, err)
			}
		}
	}
	for i := 1; i <= len(scraper.Columns); i++ {
		col, _ := excelize.ColumnNumberToName(i)
		_ = f.SetColWidth(SheetName, col, col, 28)
	}
	_, err := f.WriteTo(w)
	return err
}

// ToFile writes rs to path, choosing the format from its extension.
func ToFile(path string, rs scraper.ResultSet) error {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(file, format, rs); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
