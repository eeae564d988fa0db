// Package aggregate computes totals, time buckets and status proportions.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"faturas/internal/core"
	"faturas/internal/filter"
)

// Summary holds the headline totals. Open plus Paid always equals Total.
type Summary struct {
	Count int
	Open  decimal.Decimal
	Paid  decimal.Decimal
	Total decimal.Decimal
}

func Summarize(records []core.Invoice) Summary {
	s := Summary{Count: len(records), Open: decimal.Zero, Paid: decimal.Zero}
	for _, r := range records {
		if r.Status == core.StatusPaid {
			s.Paid = s.Paid.Add(r.Amount)
		} else {
			s.Open = s.Open.Add(r.Amount)
		}
	}
	s.Total = s.Open.Add(s.Paid)
	return s
}

// Granularity is the width of a chart bucket.
type Granularity int

const (
	Day Granularity = iota
	Month
	Year
)

// Span thresholds in inclusive days.
const (
	maxDaySpan   = 31
	maxMonthSpan = 365
)

// ChooseGranularity picks Day up to 31 days, Month up to 365, Year above.
func ChooseGranularity(r filter.DateRange) Granularity {
	switch days := r.Days(); {
	case days <= maxDaySpan:
		return Day
	case days <= maxMonthSpan:
		return Month
	default:
		return Year
	}
}

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Month:
		return "month"
	default:
		return "year"
	}
}

// Title is the bar chart heading for g.
func (g Granularity) Title() string {
	switch g {
	case Day:
		return "Faturas por Dia"
	case Month:
		return "Faturas por Mês"
	default:
		return "Faturas por Ano"
	}
}

// Truncate returns the start of the period containing t.
func (g Granularity) Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	switch g {
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
}

// Label formats a period start: DD/MM, MM/YYYY or YYYY.
func (g Granularity) Label(t time.Time) string {
	switch g {
	case Day:
		return t.Format("02/01")
	case Month:
		return t.Format("01/2006")
	default:
		return t.Format("2006")
	}
}

// Bucket is the per-status sum for one period.
type Bucket struct {
	Label string
	Start time.Time
	Paid  decimal.Decimal
	Open  decimal.Decimal
}

// Buckets groups records by period in chronological order. Only periods with
// at least one record appear; a status absent from a period sums to zero.
func Buckets(records []core.Invoice, g Granularity) []Bucket {
	index := map[time.Time]int{}
	var out []Bucket
	for _, r := range records {
		start := g.Truncate(r.DueDate)
		i, ok := index[start]
		if !ok {
			i = len(out)
			index[start] = i
			out = append(out, Bucket{Label: g.Label(start), Start: start, Paid: decimal.Zero, Open: decimal.Zero})
		}
		if r.Status == core.StatusPaid {
			out[i].Paid = out[i].Paid.Add(r.Amount)
		} else {
			out[i].Open = out[i].Open.Add(r.Amount)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Start.Before(out[b].Start) })
	return out
}

// StatusCount is one slice of the status donut.
type StatusCount struct {
	Status  core.Status
	Count   int
	Percent float64
}

// StatusCounts counts records per status in the fixed order Paid, Open.
// Percentages are zero when there are no records.
func StatusCounts(records []core.Invoice) []StatusCount {
	counts := map[core.Status]int{}
	for _, r := range records {
		counts[r.Status]++
	}
	out := make([]StatusCount, 0, 2)
	for _, s := range core.Statuses() {
		sc := StatusCount{Status: s, Count: counts[s]}
		if n := len(records); n > 0 {
			sc.Percent = float64(sc.Count) * 100 / float64(n)
		}
		out = append(out, sc)
	}
	return out
}
