package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Snapshot is a point-in-time read of the gathered metric families,
// taken at shutdown for the exit summary.
type Snapshot struct {
	families map[string]*dto.MetricFamily
}

// TakeSnapshot gathers the registry's current metric families.
func TakeSnapshot(g prometheus.Gatherer) (*Snapshot, error) {
	fams, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(fams))
	for _, fam := range fams {
		byName[fam.GetName()] = fam
	}

	return &Snapshot{families: byName}, nil
}

// CounterValue returns the value of a plain counter, or 0 if absent.
func (s *Snapshot) CounterValue(name string) float64 {
	fam, ok := s.families[name]
	if !ok || len(fam.GetMetric()) == 0 {
		return 0
	}
	return fam.GetMetric()[0].GetCounter().GetValue()
}

// CounterValues returns label value -> counter value for a single-label
// counter vector, or an empty map if absent.
func (s *Snapshot) CounterValues(name, label string) map[string]float64 {
	out := make(map[string]float64)

	fam, ok := s.families[name]
	if !ok {
		return out
	}

	for _, m := range fam.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}

	return out
}

// WriteText encodes the snapshot's families in Prometheus text exposition
// format, filtered to names with the given prefix (empty = all).
func (s *Snapshot) WriteText(w io.Writer, prefix string) error {
	enc := expfmt.NewEncoder(w, expfmt.FmtText)

	for _, fam := range s.families {
		if prefix != "" && !strings.HasPrefix(fam.GetName(), prefix) {
			continue
		}
		if err := enc.Encode(fam); err != nil {
			return fmt.Errorf("encode %s: %w", fam.GetName(), err)
		}
	}

	return nil
}
