// Package memprof measures the memory footprint of a scoped piece of work: the resident
// set size of this process plus that of any child processes the work registers (external
// solvers), sampled at a fixed interval between Start and Stop.
package memprof

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval matches memory_profiler's default sampling period.
const DefaultInterval = 100 * time.Millisecond

// Config controls a Sampler. Zero values select the defaults.
type Config struct {
	Interval time.Duration
	Reader   Reader
	PID      int // process treated as "self"; defaults to os.Getpid()
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Reader == nil {
		c.Reader = DefaultReader()
	}
	if c.PID == 0 {
		c.PID = os.Getpid()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Sampler records memory samples in a background goroutine. A nil *Sampler is valid and
// ignores Track and Untrack, so callers never need to check FromContext's result.
type Sampler struct {
	cfg   Config
	name  string
	runID string

	mu      sync.Mutex
	tracked map[int]struct{}
	samples []Sample
	start   time.Time
	report  *Report

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewSampler prepares a sampler; nothing is read until Start.
func NewSampler(name string, cfg Config) *Sampler {
	return &Sampler{
		cfg:     cfg.withDefaults(),
		name:    name,
		runID:   uuid.NewString(),
		tracked: map[int]struct{}{},
	}
}

// RunID identifies this measurement in logs and reports.
func (s *Sampler) RunID() string { return s.runID }

// Start takes the baseline sample and begins periodic sampling until Stop or ctx ends.
// Calling Start twice has no further effect.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.group != nil || s.report != nil {
		s.mu.Unlock()
		return
	}
	s.start = s.cfg.Now()
	ctx, s.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s.group = g
	s.mu.Unlock()

	s.sample()
	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.sample()
			}
		}
	})
	logrus.WithFields(logrus.Fields{
		"run_id": s.runID, "name": s.name, "interval": s.cfg.Interval,
	}).Debug("memprof: sampling started")
}

// Track adds a child process whose RSS is counted with ours.
func (s *Sampler) Track(pid int) {
	if s == nil || pid <= 0 {
		return
	}
	s.mu.Lock()
	s.tracked[pid] = struct{}{}
	s.mu.Unlock()
	s.sample()
}

// Untrack stops counting a child, typically right after it exits.
func (s *Sampler) Untrack(pid int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.tracked, pid)
	s.mu.Unlock()
}

// Tracked returns the PIDs currently counted, sorted.
func (s *Sampler) Tracked() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := make([]int, 0, len(s.tracked))
	for pid := range s.tracked {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// Stop ends sampling, takes a final sample and returns the report. Later calls return
// the same report.
func (s *Sampler) Stop() *Report {
	s.mu.Lock()
	if s.report != nil {
		r := s.report
		s.mu.Unlock()
		return r
	}
	cancel, g := s.cancel, s.group
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		_ = g.Wait()
	}
	s.sample()

	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.start
	if start.IsZero() && len(s.samples) > 0 {
		start = s.samples[0].Time
	}
	s.report = newReport(s.runID, s.name, start, s.cfg.Now(), s.samples)
	logrus.WithFields(logrus.Fields{
		"run_id":   s.runID,
		"samples":  len(s.samples),
		"peak_mib": s.report.PeakMiB(),
	}).Debug("memprof: sampling stopped")
	return s.report
}

// sample reads self and tracked children. A child that already exited contributes zero;
// if self cannot be read the sample is skipped.
func (s *Sampler) sample() {
	s.mu.Lock()
	if s.report != nil {
		s.mu.Unlock()
		return
	}
	pids := make([]int, 0, len(s.tracked))
	for pid := range s.tracked {
		pids = append(pids, pid)
	}
	s.mu.Unlock()

	self, err := s.cfg.Reader.RSS(s.cfg.PID)
	if err != nil {
		logrus.Debugf("memprof: %v", err)
		return
	}
	var children uint64
	for _, pid := range pids {
		if rss, err := s.cfg.Reader.RSS(pid); err == nil {
			children += rss
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report != nil {
		return
	}
	s.samples = append(s.samples, Sample{Time: s.cfg.Now(), Self: self, Children: children})
}
