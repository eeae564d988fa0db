// Package files reads invoice tables from spreadsheet files in a directory.
package files

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	ports "faturas/internal/sheets"
)

// DefaultPattern matches the report exports the dashboard was built for.
const DefaultPattern = "*.xlsx"

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Source reads every file in Dir matching Pattern.
type Source struct {
	Dir     string
	Pattern string
}

var _ ports.TableSource = (*Source)(nil)

func New(dir, pattern string) *Source {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	return &Source{Dir: dir, Pattern: pattern}
}

func (s *Source) String() string {
	return "files:" + filepath.Join(s.Dir, s.Pattern)
}

// ReadTables globs the directory and parses each match. Files are read in
// name order so repeated loads concatenate rows identically.
func (s *Source) ReadTables(ctx context.Context) (ports.ReadResult, error) {
	res := ports.ReadResult{Source: s.String()}

	matches, err := filepath.Glob(filepath.Join(s.Dir, s.Pattern))
	if err != nil {
		return res, fmt.Errorf("glob %s: %w", s.String(), err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		res.Matched++

		table, err := ReadFile(path)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read spreadsheet", "file", path, "error", err)
			res.Failures = append(res.Failures, ports.ReadFailure{Name: filepath.Base(path), Err: err})
			continue
		}
		res.Tables = append(res.Tables, table)
	}
	return res, nil
}

// ReadFile parses a single spreadsheet. Only the first worksheet is used.
func ReadFile(path string) (ports.Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	case ".xls":
		rows, err = readXLS(path)
	case ".csv", ".txt":
		rows, err = readCSV(path)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return ports.Table{}, err
	}
	return tableFromRows(filepath.Base(path), rows), nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetsList := f.GetSheetList()
	if len(sheetsList) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	// Raw values keep dates as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheetsList[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetsList[0], err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	workbook, err := xls.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xls workbook: %w", err)
	}
	if workbook.GetNumberSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("read xls sheet: %w", err)
	}
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	var rows [][]string
	for _, row := range sheet.GetRows() {
		var cells []string
		for _, col := range row.GetCols() {
			if col == nil {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, col.GetString())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var r io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		// Exports from the billing system are Windows-1252 encoded.
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	return rows, nil
}

// sniffDelimiter picks ';' or ',' from the first line.
func sniffDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// tableFromRows treats the first non-blank row as the header.
func tableFromRows(name string, rows [][]string) ports.Table {
	t := ports.Table{Name: name}
	start := -1
	for i, row := range rows {
		if !blank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return t
	}
	t.Headers = rows[start]
	for _, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
