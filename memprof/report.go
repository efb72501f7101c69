package memprof

import (
	"fmt"
	"io"
	"sort"
	"time"
)

const mib = 1024 * 1024

// Sample is one observation: the RSS of this process and the summed RSS of tracked children.
type Sample struct {
	Time     time.Time
	Self     uint64
	Children uint64
}

// Total is the memory attributed to the benchmark at this instant.
func (s Sample) Total() uint64 { return s.Self + s.Children }

// Distribution summarizes sampled memory in MiB.
type Distribution struct {
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
	Min   float64
	Max   float64
	Count int
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return Distribution{
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// percentile computes the p-th percentile using linear interpolation. Input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Report is the outcome of one profiled scope. Byte counts are totals (self plus children).
type Report struct {
	RunID        string
	Name         string
	Start        time.Time
	End          time.Time
	Samples      []Sample
	Baseline     uint64 // first sample
	Peak         uint64
	Increment    uint64 // Peak - Baseline
	Distribution Distribution
}

func newReport(runID, name string, start, end time.Time, samples []Sample) *Report {
	r := &Report{RunID: runID, Name: name, Start: start, End: end, Samples: samples}
	if len(samples) == 0 {
		return r
	}
	r.Baseline = samples[0].Total()
	values := make([]float64, len(samples))
	for i, s := range samples {
		if s.Total() > r.Peak {
			r.Peak = s.Total()
		}
		values[i] = toMiB(s.Total())
	}
	if r.Peak > r.Baseline {
		r.Increment = r.Peak - r.Baseline
	}
	r.Distribution = NewDistribution(values)
	return r
}

func toMiB(b uint64) float64 { return float64(b) / mib }

// Duration is the wall time of the profiled scope.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// PeakMiB is the peak total memory in MiB.
func (r *Report) PeakMiB() float64 { return toMiB(r.Peak) }

// Print writes a human-readable summary.
func (r *Report) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "=== Memory Profile: %s ===\n"+
		"Run ID               : %s\n"+
		"Duration             : %v\n"+
		"Samples              : %d\n"+
		"Baseline             : %.2f MiB\n"+
		"Peak                 : %.2f MiB\n"+
		"Increment            : %.2f MiB\n"+
		"Mean / P50 / P95     : %.2f / %.2f / %.2f MiB\n",
		r.Name, r.RunID, r.Duration().Round(time.Millisecond), len(r.Samples),
		toMiB(r.Baseline), toMiB(r.Peak), toMiB(r.Increment),
		r.Distribution.Mean, r.Distribution.P50, r.Distribution.P95)
	return err
}

// WriteMprof writes the samples in the .dat format read by memory_profiler's mprof plot.
func (r *Report) WriteMprof(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "CMDLINE %s\n", r.Name); err != nil {
		return err
	}
	for _, s := range r.Samples {
		ts := float64(s.Time.UnixNano()) / 1e9
		if _, err := fmt.Fprintf(w, "MEM %.6f %.4f\n", toMiB(s.Total()), ts); err != nil {
			return err
		}
	}
	return nil
}
