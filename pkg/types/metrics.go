package types

import "time"

// MetricQuery selects one CloudWatch statistic over a time window
type MetricQuery struct {
	Namespace  string
	Metric     string
	Statistic  string // Average, Sum, Maximum
	Dimensions map[string]string
	Period     time.Duration
	Start      time.Time
	End        time.Time
}

// Datapoint is a single aggregated metric value
type Datapoint struct {
	Timestamp time.Time `yaml:"timestamp"`
	Value     float64   `yaml:"value"`
	Unit      string    `yaml:"unit,omitempty"`
}

// Series is a time-ordered list of datapoints for one metric
type Series struct {
	Label      string      `yaml:"label"`
	Metric     string      `yaml:"metric"`
	Statistic  string      `yaml:"statistic"`
	Datapoints []Datapoint `yaml:"datapoints"`
}
