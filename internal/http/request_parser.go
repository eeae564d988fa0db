package http

import (
	"net/http"
	"strconv"
	"strings"

	"faturas/internal/filter"
)

// parseCriteria reads the dashboard filters from the query string. Unknown
// statuses and malformed dates are ignored rather than rejected.
func parseCriteria(r *http.Request) filter.Criteria {
	return filter.FromValues(r.URL.Query())
}

// parseLimit parses a positive integer, falling back to def and capping at
// ceiling.
func parseLimit(raw string, def, ceiling int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
