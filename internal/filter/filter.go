// Package filter selects invoices by date range, status, client and text.
package filter

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"faturas/internal/core"
)

// DateLayout is the wire format of range bounds.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates. A zero bound is missing.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Complete reports whether both bounds are set and ordered.
func (r DateRange) Complete() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.Start.After(r.End)
}

// Contains reports whether t falls within the range at date granularity.
// A missing bound leaves that side open.
func (r DateRange) Contains(t time.Time) bool {
	d := core.Day(t)
	if !r.Start.IsZero() && d.Before(core.Day(r.Start)) {
		return false
	}
	if !r.End.IsZero() && d.After(core.Day(r.End)) {
		return false
	}
	return true
}

// Days is the inclusive number of days covered.
func (r DateRange) Days() int {
	return int(core.Day(r.End).Sub(core.Day(r.Start)).Hours()/24) + 1
}

// ResolveRange returns r when it is complete, otherwise the full [min, max]
// range of the dataset.
func ResolveRange(r DateRange, min, max time.Time) DateRange {
	if r.Complete() {
		return DateRange{Start: core.Day(r.Start), End: core.Day(r.End)}
	}
	return DateRange{Start: core.Day(min), End: core.Day(max)}
}

// Criteria holds the active selection. Empty Statuses or Clients leave that
// dimension unfiltered.
type Criteria struct {
	Range    DateRange
	Statuses []core.Status
	Clients  []string
	Search   string
}

var folder = cases.Fold()

// Apply returns the records matching every criterion, in input order. The
// input slice is never modified.
func Apply(records []core.Invoice, c Criteria) []core.Invoice {
	statuses := make(map[core.Status]struct{}, len(c.Statuses))
	for _, s := range c.Statuses {
		statuses[s] = struct{}{}
	}
	clients := make(map[string]struct{}, len(c.Clients))
	for _, cl := range c.Clients {
		clients[cl] = struct{}{}
	}
	needle := folder.String(strings.TrimSpace(c.Search))

	out := make([]core.Invoice, 0, len(records))
	for _, inv := range records {
		if !c.Range.Contains(inv.DueDate) {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[inv.Status]; !ok {
				continue
			}
		}
		if len(clients) > 0 {
			if _, ok := clients[inv.Client]; !ok {
				continue
			}
		}
		if needle != "" && !Matches(inv, needle) {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// Matches reports whether any displayed field of inv contains the folded
// needle.
func Matches(inv core.Invoice, needle string) bool {
	fields := [...]string{
		inv.ID,
		inv.Client,
		inv.Amount.String(),
		inv.DueDate.Format(DateLayout),
		inv.Status.String(),
	}
	for _, f := range fields {
		if strings.Contains(folder.String(f), needle) {
			return true
		}
	}
	return false
}

// Key returns a canonical string for c, stable under reordering of the
// multi-select values.
func (c Criteria) Key() string {
	v := c.Values()
	statuses := v["status"]
	sort.Strings(statuses)
	clients := v["client"]
	sort.Strings(clients)
	return v.Encode()
}

// Values encodes c as query parameters.
func (c Criteria) Values() url.Values {
	v := url.Values{}
	if !c.Range.Start.IsZero() {
		v.Set("start", c.Range.Start.Format(DateLayout))
	}
	if !c.Range.End.IsZero() {
		v.Set("end", c.Range.End.Format(DateLayout))
	}
	for _, s := range c.Statuses {
		v.Add("status", s.Code())
	}
	for _, cl := range c.Clients {
		v.Add("client", cl)
	}
	if q := strings.TrimSpace(c.Search); q != "" {
		v.Set("q", q)
	}
	return v
}

// FromValues parses query parameters. Unparseable dates and unknown statuses
// are ignored.
func FromValues(v url.Values) Criteria {
	var c Criteria
	if t, err := time.Parse(DateLayout, strings.TrimSpace(v.Get("start"))); err == nil {
		c.Range.Start = t
	}
	if t, err := time.Parse(DateLayout, strings.TrimSpace(v.Get("end"))); err == nil {
		c.Range.End = t
	}
	seen := map[core.Status]bool{}
	for _, raw := range v["status"] {
		if s, ok := core.ParseStatus(raw); ok && !seen[s] {
			seen[s] = true
			c.Statuses = append(c.Statuses, s)
		}
	}
	for _, cl := range v["client"] {
		c.Clients = append(c.Clients, cl)
	}
	c.Search = strings.TrimSpace(v.Get("q"))
	return c
}
