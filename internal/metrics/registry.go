// Package metrics keeps the fixture's counters and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Registry owns a set of metric families.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
}

type family struct {
	name       string
	help       string
	kind       dto.MetricType
	labelNames []string
	values     map[string]*sample
}

type sample struct {
	labelValues []string
	value       float64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*family)}
}

func (r *Registry) register(name, help string, kind dto.MetricType, labelNames []string) *family {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.families[name]; exists {
		panic(fmt.Sprintf("metrics: duplicate registration of %q", name))
	}
	f := &family{
		name:       name,
		help:       help,
		kind:       kind,
		labelNames: labelNames,
		values:     make(map[string]*sample),
	}
	r.families[name] = f
	return f
}

// update applies fn to the sample identified by labelValues, creating it on
// first use.
func (r *Registry) update(f *family, labelValues []string, fn func(float64) float64) {
	if len(labelValues) != len(f.labelNames) {
		panic(fmt.Sprintf("metrics: %s expects %d label values, got %d", f.name, len(f.labelNames), len(labelValues)))
	}
	key := strings.Join(labelValues, "\xff")

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := f.values[key]
	if !ok {
		s = &sample{labelValues: append([]string(nil), labelValues...)}
		f.values[key] = s
	}
	s.value = fn(s.value)
}

// CounterVec is a monotonically increasing counter partitioned by labels.
type CounterVec struct {
	registry *Registry
	family   *family
}

// NewCounterVec registers a counter family.
func (r *Registry) NewCounterVec(name, help string, labelNames ...string) *CounterVec {
	return &CounterVec{registry: r, family: r.register(name, help, dto.MetricType_COUNTER, labelNames)}
}

// Inc adds one to the counter identified by labelValues.
func (c *CounterVec) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add adds delta, which must not be negative.
func (c *CounterVec) Add(delta float64, labelValues ...string) {
	if delta < 0 {
		panic("metrics: counter cannot decrease")
	}
	c.registry.update(c.family, labelValues, func(v float64) float64 { return v + delta })
}

// Value returns the current count for labelValues.
func (c *CounterVec) Value(labelValues ...string) float64 {
	return c.registry.value(c.family, labelValues)
}

// Gauge is a single value that can go up and down.
type Gauge struct {
	registry *Registry
	family   *family
}

// NewGauge registers an unlabelled gauge.
func (r *Registry) NewGauge(name, help string) *Gauge {
	return &Gauge{registry: r, family: r.register(name, help, dto.MetricType_GAUGE, nil)}
}

// Set replaces the gauge value.
func (g *Gauge) Set(v float64) {
	g.registry.update(g.family, nil, func(float64) float64 { return v })
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return g.registry.value(g.family, nil)
}

func (r *Registry) value(f *family, labelValues []string) float64 {
	key := strings.Join(labelValues, "\xff")

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := f.values[key]; ok {
		return s.value
	}
	return 0
}

// Gather snapshots every family with at least one sample, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*dto.MetricFamily, 0, len(r.families))
	for _, f := range r.families {
		if len(f.values) == 0 {
			continue
		}
		mf := &dto.MetricFamily{
			Name: proto.String(f.name),
			Help: proto.String(f.help),
			Type: f.kind.Enum(),
		}
		for _, s := range f.values {
			mf.Metric = append(mf.Metric, f.toMetric(s))
		}
		sort.Slice(mf.Metric, func(i, j int) bool {
			return metricKey(mf.Metric[i]) < metricKey(mf.Metric[j])
		})
		out = append(out, mf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func metricKey(m *dto.Metric) string {
	values := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		values = append(values, lp.GetValue())
	}
	return strings.Join(values, "\xff")
}

func (f *family) toMetric(s *sample) *dto.Metric {
	m := &dto.Metric{}
	for i, name := range f.labelNames {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(name),
			Value: proto.String(s.labelValues[i]),
		})
	}
	switch f.kind {
	case dto.MetricType_COUNTER:
		m.Counter = &dto.Counter{Value: proto.Float64(s.value)}
	default:
		m.Gauge = &dto.Gauge{Value: proto.Float64(s.value)}
	}
	return m
}

// WriteText writes every gathered family in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	for _, mf := range r.Gather() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ContentType is the media type WriteText produces.
func ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}
