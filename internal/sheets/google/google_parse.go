package google

import (
	"fmt"
	"strconv"
	"strings"

	ports "faturas/internal/sheets"
)

// tableFromValues converts a values matrix as returned by the Sheets API.
// The first non-empty row becomes the header.
func tableFromValues(name string, values [][]interface{}) ports.Table {
	t := ports.Table{Name: name}
	headerSeen := false
	for _, raw := range values {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		if !headerSeen {
			t.Headers = row
			headerSeen = true
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

// cellString renders numbers without exponent so serial dates and amounts
// survive the trip through strings.
func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return strings.TrimSpace(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
