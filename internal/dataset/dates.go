package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"faturas/internal/core"
)

// Layouts tried for textual due dates. Slashed dates are always day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
}

// Serial bounds accepted for numeric due dates. minExcelSerial (1927-05-18)
// keeps bare years and small counts from being read as dates.
const (
	minExcelSerial = 10000
	maxExcelSerial = 2958465 // 9999-12-31
)

// ParseDueDate parses an Excel serial number or one of the textual layouts
// and returns the calendar date at midnight UTC.
func ParseDueDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < minExcelSerial || f > maxExcelSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, false
		}
		return core.Day(t), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Day(t), true
		}
	}
	return time.Time{}, false
}
