package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType is the kind of a recorded metric.
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
	MetricTypeSummary MetricType = "summary"
)

// Serving metric names.
const (
	MetricRequests    = "predict_requests_total"
	MetricPredictions = "predictions_total"
	MetricFailures    = "predict_failures_total"
	MetricLatency     = "predict_latency_seconds"
)

// Metric is one sample.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// LatencySummary aggregates the recorded latency samples.
type LatencySummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Latest  float64 `json:"latest"`
}

// MetricsCollector keeps in-memory serving counters and a bounded latency
// history.
type MetricsCollector struct {
	metricsLock sync.RWMutex

	counters map[string]map[string]float64
	help     map[string]string
	samples  map[string][]*Metric

	maxSamples int
	startTime  time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]map[string]float64),
		help:       make(map[string]string),
		samples:    make(map[string][]*Metric),
		maxSamples: 1000,
		startTime:  time.Now(),
	}
}

// IncrCounter adds value to the counter name under label.
func (mc *MetricsCollector) IncrCounter(name, label string, value float64) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	if _, ok := mc.counters[name]; !ok {
		mc.counters[name] = make(map[string]float64)
	}
	mc.counters[name][label] += value
}

// RecordMetric appends a sample. Only the most recent samples are kept.
func (mc *MetricsCollector) RecordMetric(metric *Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric.Timestamp = time.Now()
	if metric.Help != "" {
		mc.help[metric.Name] = metric.Help
	}
	mc.samples[metric.Name] = append(mc.samples[metric.Name], metric)
	if len(mc.samples[metric.Name]) > mc.maxSamples {
		mc.samples[metric.Name] = mc.samples[metric.Name][len(mc.samples[metric.Name])-mc.maxSamples:]
	}
}

// RecordRequest counts a predict request.
func (mc *MetricsCollector) RecordRequest() {
	mc.IncrCounter(MetricRequests, "", 1)
}

// RecordPrediction counts a served prediction and its latency.
func (mc *MetricsCollector) RecordPrediction(label string, latency time.Duration) {
	mc.IncrCounter(MetricPredictions, label, 1)
	mc.RecordMetric(&Metric{
		Name:  MetricLatency,
		Type:  MetricTypeSummary,
		Value: latency.Seconds(),
		Help:  "Predict latency in seconds",
	})
}

// RecordFailure counts a failed request under its error class.
func (mc *MetricsCollector) RecordFailure(class string) {
	mc.IncrCounter(MetricFailures, class, 1)
}

// Counter returns the current value of a labelled counter.
func (mc *MetricsCollector) Counter(name, label string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()
	return mc.counters[name][label]
}

// GetMetricSummary summarizes the samples recorded under name.
func (mc *MetricsCollector) GetMetricSummary(name string) LatencySummary {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metrics := mc.samples[name]
	if len(metrics) == 0 {
		return LatencySummary{}
	}

	summary := LatencySummary{
		Count:  len(metrics),
		Min:    metrics[0].Value,
		Max:    metrics[0].Value,
		Latest: metrics[len(metrics)-1].Value,
	}
	sum := 0.0
	for _, m := range metrics {
		sum += m.Value
		if m.Value < summary.Min {
			summary.Min = m.Value
		}
		if m.Value > summary.Max {
			summary.Max = m.Value
		}
	}
	summary.Average = sum / float64(len(metrics))
	return summary
}

// Snapshot returns all serving counters, the latency summary and process
// stats.
func (mc *MetricsCollector) Snapshot() map[string]interface{} {
	mc.metricsLock.RLock()
	predictions := copyCounter(mc.counters[MetricPredictions])
	failures := copyCounter(mc.counters[MetricFailures])
	requests := mc.counters[MetricRequests][""]
	mc.metricsLock.RUnlock()

	return map[string]interface{}{
		"requests":    requests,
		"predictions": predictions,
		"failures":    failures,
		"latency":     mc.GetMetricSummary(MetricLatency),
		"system":      mc.GetSystemStats(),
	}
}

func copyCounter(counter map[string]float64) map[string]float64 {
	result := make(map[string]float64, len(counter))
	for label, value := range counter {
		result[label] = value
	}
	return result
}

// ExportPrometheus renders the counters and the latest sample of each metric
// in the Prometheus text format.
func (mc *MetricsCollector) ExportPrometheus() string {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	var output strings.Builder

	names := make([]string, 0, len(mc.counters))
	for name := range mc.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&output, "# TYPE %s %s\n", name, MetricTypeCounter)
		labels := make([]string, 0, len(mc.counters[name]))
		for label := range mc.counters[name] {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			labelsStr := ""
			if label != "" {
				labelsStr = fmt.Sprintf(`{label=%q}`, label)
			}
			fmt.Fprintf(&output, "%s%s %g\n", name, labelsStr, mc.counters[name][label])
		}
	}

	names = names[:0]
	for name := range mc.samples {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		metrics := mc.samples[name]
		if len(metrics) == 0 {
			continue
		}
		metric := metrics[len(metrics)-1]
		help := mc.help[name]
		if help == "" {
			help = fmt.Sprintf("Metric %s", name)
		}
		fmt.Fprintf(&output, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&output, "# TYPE %s %s\n", name, MetricTypeGauge)
		fmt.Fprintf(&output, "%s %f %d\n", name, metric.Value, metric.Timestamp.UnixMilli())
	}

	return output.String()
}

func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats reports runtime statistics of the process.
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":      m.Alloc,
			"sys":        m.Sys,
			"heap_alloc": m.HeapAlloc,
			"heap_inuse": m.HeapInuse,
			"gc_count":   m.NumGC,
		},
		"num_cpu": runtime.NumCPU(),
	}
}
