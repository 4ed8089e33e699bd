package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/vietdv277/clusterbench/internal/bench"
	"github.com/vietdv277/clusterbench/internal/report"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// PrintSeries prints one summary row per metric series
func PrintSeries(w io.Writer, series []types.Series) {
	t := Table{Columns: []Column{
		{"Series", 28}, {"Stat", 8}, {"Points", 6}, {"Min", 12}, {"Avg", 12}, {"Max", 12}, {"Last", 12},
	}}
	for _, s := range series {
		min, avg, max, last := stats(s.Datapoints)
		label := s.Label
		if label == "" {
			label = s.Metric
		}
		t.AddRow(
			Styled(label, NameStyle),
			Styled(s.Statistic, MutedStyle),
			Styled(strconv.Itoa(len(s.Datapoints)), MutedStyle),
			Plain(number(min, len(s.Datapoints))),
			Plain(number(avg, len(s.Datapoints))),
			Plain(number(max, len(s.Datapoints))),
			Styled(number(last, len(s.Datapoints)), IDStyle),
		)
	}
	t.Render(w)
	fmt.Fprintf(w, "  %d series\n", len(series))
}

// PrintMetricsReport prints instance metrics per cluster and load balancer request counts
func PrintMetricsReport(w io.Writer, rep *report.Report) {
	var series []types.Series
	for _, c := range rep.Clusters {
		series = append(series, c.Series...)
	}
	if rep.LoadBalancer != "" {
		requests := rep.Requests
		requests.Label = rep.LoadBalancer + " RequestCount"
		series = append(series, requests)

		clusters := make([]string, 0, len(rep.TargetGroups))
		for name := range rep.TargetGroups {
			clusters = append(clusters, name)
		}
		sort.Strings(clusters)
		for _, name := range clusters {
			s := rep.TargetGroups[name]
			s.Label = name + " RequestCount"
			series = append(series, s)
		}
	}
	PrintSeries(w, series)

	if rep.LoadBalancer != "" {
		fmt.Fprintf(w, "  %s requests through %s\n",
			IDStyle.Render(strconv.FormatFloat(report.Total(rep.Requests), 'f', 0, 64)), rep.LoadBalancer)
	}
}

// PrintBenchmark prints the outcome of a load test
func PrintBenchmark(w io.Writer, res *bench.Result) {
	t := Table{Columns: []Column{{"Status", 10}, {"Responses", 10}}}

	codes := make([]int, 0, len(res.Statuses))
	for code := range res.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		style := GoodStyle
		if code >= 400 {
			style = BadStyle
		}
		t.AddRow(Styled(strconv.Itoa(code), style), Plain(strconv.Itoa(res.Statuses[code])))
	}
	if res.Failures > 0 {
		t.AddRow(Styled("failed", BadStyle), Plain(strconv.Itoa(res.Failures)))
	}
	t.Render(w)

	fmt.Fprintf(w, "  %d requests to %s from %s in %s (%s per request)\n",
		res.Requests, res.URL, res.Host, res.Total.Round(10*time.Millisecond), res.Average)
}

func stats(points []types.Datapoint) (min, avg, max, last float64) {
	if len(points) == 0 {
		return 0, 0, 0, 0
	}
	min, max = points[0].Value, points[0].Value
	var sum float64
	for _, p := range points {
		sum += p.Value
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
	}
	return min, sum / float64(len(points)), max, points[len(points)-1].Value
}

func number(v float64, n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
