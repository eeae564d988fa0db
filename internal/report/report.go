// Package report builds the dashboard view model and the CSV export.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"faturas/internal/aggregate"
	"faturas/internal/core"
	"faturas/internal/dataset"
	"faturas/internal/filter"
)

// Chart colors per status code.
var statusColors = map[core.Status]string{
	core.StatusPaid: "#2E86AB",
	core.StatusOpen: "#FF6B6B",
}

// Series labels for the bar chart.
var seriesNames = map[core.Status]string{
	core.StatusPaid: "Pagas",
	core.StatusOpen: "Em aberto",
}

const displayDate = "02/01/2006"

type (
	Card struct {
		Label string
		Value string
		Class string
	}

	Series struct {
		Name   string    `json:"name"`
		Code   string    `json:"code"`
		Color  string    `json:"color"`
		Values []float64 `json:"values"`
	}

	BarChart struct {
		Title       string   `json:"title"`
		Granularity string   `json:"granularity"`
		Labels      []string `json:"labels"`
		Series      []Series `json:"series"`
	}

	DonutChart struct {
		Labels   []string  `json:"labels"`
		Counts   []int     `json:"counts"`
		Percents []float64 `json:"percents"`
		Colors   []string  `json:"colors"`
		// Slices reads "Paga: 3 (42,9%)", one per status.
		Slices []string `json:"slices"`
	}

	Charts struct {
		Bar   BarChart   `json:"bar"`
		Donut DonutChart `json:"donut"`
	}

	Row struct {
		ID      string
		Client  string
		Amount  string
		DueDate string
		Status  string
		Icon    string
		Code    string
	}

	Option struct {
		Value    string
		Label    string
		Selected bool
	}

	// Options feeds the filter controls and echoes the current selection.
	Options struct {
		Statuses []Option
		Clients  []Option
		Min      string
		Max      string
		Start    string
		End      string
		Search   string
	}

	// View is everything the dashboard renders for one request.
	View struct {
		Empty       bool
		Error       string
		Report      dataset.LoadReport
		Range       filter.DateRange
		Period      string
		Granularity aggregate.Granularity
		Summary     aggregate.Summary
		Cards       []Card
		Charts      Charts
		Rows        []Row
		Options     Options
		Query       string
	}
)

// Select resolves the date range of c against ds and applies it. The
// returned criteria carry the effective range.
func Select(ds *dataset.Dataset, c filter.Criteria) ([]core.Invoice, filter.Criteria) {
	c.Range = filter.ResolveRange(c.Range, ds.MinDate, ds.MaxDate)
	return filter.Apply(ds.Records, c), c
}

// Build runs filter, aggregate and formatting for one interaction.
func Build(ds *dataset.Dataset, c filter.Criteria) View {
	if ds.Empty() {
		v := View{Empty: true}
		if ds != nil {
			v.Report = ds.Report
			v.Error = ds.Report.Error
		}
		return v
	}

	records, effective := Select(ds, c)
	g := aggregate.ChooseGranularity(effective.Range)
	summary := aggregate.Summarize(records)

	return View{
		Report:      ds.Report,
		Range:       effective.Range,
		Period:      fmt.Sprintf("Período selecionado: %s a %s", effective.Range.Start.Format(displayDate), effective.Range.End.Format(displayDate)),
		Granularity: g,
		Summary:     summary,
		Cards:       cards(summary),
		Charts:      Charts{Bar: barChart(aggregate.Buckets(records, g), g), Donut: donutChart(aggregate.StatusCounts(records))},
		Rows:        rows(records),
		Options:     options(ds, c, effective.Range),
		Query:       c.Values().Encode(),
	}
}

func cards(s aggregate.Summary) []Card {
	return []Card{
		{Label: "Total de Faturas", Value: fmt.Sprintf("%d", s.Count), Class: "count"},
		{Label: "Valor em Aberto", Value: core.FormatBRL(s.Open), Class: "unpaid"},
		{Label: "Valor Pago", Value: core.FormatBRL(s.Paid), Class: "paid"},
		{Label: "Valor Total", Value: core.FormatBRL(s.Total), Class: "total"},
	}
}

func barChart(buckets []aggregate.Bucket, g aggregate.Granularity) BarChart {
	bar := BarChart{Title: g.Title(), Granularity: g.String(), Labels: make([]string, 0, len(buckets))}
	paid := Series{Name: seriesNames[core.StatusPaid], Code: core.StatusPaid.Code(), Color: statusColors[core.StatusPaid], Values: make([]float64, 0, len(buckets))}
	open := Series{Name: seriesNames[core.StatusOpen], Code: core.StatusOpen.Code(), Color: statusColors[core.StatusOpen], Values: make([]float64, 0, len(buckets))}
	for _, b := range buckets {
		bar.Labels = append(bar.Labels, b.Label)
		paid.Values = append(paid.Values, b.Paid.InexactFloat64())
		open.Values = append(open.Values, b.Open.InexactFloat64())
	}
	bar.Series = []Series{paid, open}
	return bar
}

func donutChart(counts []aggregate.StatusCount) DonutChart {
	var d DonutChart
	for _, sc := range counts {
		d.Labels = append(d.Labels, sc.Status.String())
		d.Counts = append(d.Counts, sc.Count)
		d.Percents = append(d.Percents, sc.Percent)
		d.Colors = append(d.Colors, statusColors[sc.Status])
		d.Slices = append(d.Slices, sliceLabel(sc))
	}
	return d
}

func sliceLabel(sc aggregate.StatusCount) string {
	pct := strings.Replace(strconv.FormatFloat(sc.Percent, 'f', 1, 64), ".", ",", 1)
	return fmt.Sprintf("%s: %d (%s%%)", sc.Status, sc.Count, pct)
}

// rows sorts by due date, newest first, keeping source order for ties.
func rows(records []core.Invoice) []Row {
	sorted := append([]core.Invoice(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DueDate.After(sorted[j].DueDate) })

	out := make([]Row, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, Row{
			ID:      r.ID,
			Client:  r.Client,
			Amount:  core.FormatBRL(r.Amount),
			DueDate: r.DueDate.Format(displayDate),
			Status:  r.Status.String(),
			Icon:    r.Status.Icon(),
			Code:    r.Status.Code(),
		})
	}
	return out
}

func options(ds *dataset.Dataset, c filter.Criteria, effective filter.DateRange) Options {
	selectedStatus := map[core.Status]bool{}
	for _, s := range c.Statuses {
		selectedStatus[s] = true
	}
	selectedClient := map[string]bool{}
	for _, cl := range c.Clients {
		selectedClient[cl] = true
	}

	o := Options{
		Min:    ds.MinDate.Format(filter.DateLayout),
		Max:    ds.MaxDate.Format(filter.DateLayout),
		Start:  effective.Start.Format(filter.DateLayout),
		End:    effective.End.Format(filter.DateLayout),
		Search: c.Search,
	}
	for _, s := range core.Statuses() {
		o.Statuses = append(o.Statuses, Option{Value: s.Code(), Label: s.String(), Selected: selectedStatus[s]})
	}
	for _, cl := range ds.Clients {
		label := cl
		if label == "" {
			label = "(sem cliente)"
		}
		o.Clients = append(o.Clients, Option{Value: cl, Label: label, Selected: selectedClient[cl]})
	}
	return o
}
