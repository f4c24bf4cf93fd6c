package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// historyLimit bounds the samples kept per histogram.
const historyLimit = 100

// Collector is an in-process metric store.
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
	now     func() time.Time
}

// Metric is a single labelled series.
type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
		now:     time.Now,
	}
}

// IncCounter adds one to a counter.
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter adds value to a counter.
func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value += value
		metric.Timestamp = c.now().Unix()
		return
	}
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      "counter",
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: c.now().Unix(),
	}
}

// SetGauge replaces a gauge value.
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics[buildKey(name, labels)] = &Metric{
		Name:      name,
		Type:      "gauge",
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: c.now().Unix(),
	}
}

// ObserveHistogram records a sample; Value holds the latest one.
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value = value
		metric.History = append(metric.History, value)
		if len(metric.History) > historyLimit {
			metric.History = metric.History[1:]
		}
		metric.Timestamp = c.now().Unix()
		return
	}
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      "histogram",
		Value:     value,
		Labels:    copyLabels(labels),
		History:   []float64{value},
		Timestamp: c.now().Unix(),
	}
}

// buildKey renders name{k=v,...} with labels sorted so equal label sets share a key.
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+labels[k])
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// GetMetrics returns a deep copy of every metric keyed by series.
func (c *Collector) GetMetrics() map[string]Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Metric, len(c.metrics))
	for k, v := range c.metrics {
		m := *v
		m.Labels = copyLabels(v.Labels)
		m.History = append([]float64(nil), v.History...)
		result[k] = m
	}
	return result
}

// GetMetric returns a copy of one series, or false if it was never recorded.
func (c *Collector) GetMetric(name string, labels map[string]string) (Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[buildKey(name, labels)]
	if !ok {
		return Metric{}, false
	}
	out := *m
	out.Labels = copyLabels(m.Labels)
	out.History = append([]float64(nil), m.History...)
	return out, true
}

// Value returns the current value of a series, zero if missing.
func (c *Collector) Value(name string, labels map[string]string) float64 {
	m, _ := c.GetMetric(name, labels)
	return m.Value
}

// Reset drops every series.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

// Snapshot is a point-in-time copy of a Collector.
type Snapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Metrics   map[string]Metric `json:"metrics"`
}

func TakeSnapshot(collector *Collector) Snapshot {
	return Snapshot{
		Timestamp: collector.now(),
		Metrics:   collector.GetMetrics(),
	}
}

// JSON encodes the snapshot.
func (s Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// Text renders one line per series in key order; histograms report avg and count.
func (s Snapshot) Text() string {
	keys := make([]string, 0, len(s.Metrics))
	for k := range s.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		metric := s.Metrics[key]
		switch metric.Type {
		case "histogram":
			var sum float64
			for _, v := range metric.History {
				sum += v
			}
			avg := 0.0
			if len(metric.History) > 0 {
				avg = sum / float64(len(metric.History))
			}
			fmt.Fprintf(&sb, "%s_avg %.4f\n", key, avg)
			fmt.Fprintf(&sb, "%s_count %d\n", key, len(metric.History))
		default:
			fmt.Fprintf(&sb, "%s %.2f\n", key, metric.Value)
		}
	}
	return sb.String()
}
