// Package scan fans a handle out to every configured platform and folds the
// resolved answers into an ordered report.
package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tdh8316/usernamescan/internal/platform"
	"github.com/tdh8316/usernamescan/internal/policy"
	"github.com/tdh8316/usernamescan/internal/probe"
)

// Probers resolves a platform id to its prober.
type Probers interface {
	Lookup(id string) (probe.Prober, bool)
}

type Scanner struct {
	table   *platform.Table
	probers Probers
	cfg     Config
	log     logrus.FieldLogger
}

func NewScanner(tbl *platform.Table, probers Probers, cfg Config, log logrus.FieldLogger) (*Scanner, error) {
	if cfg.Concurrency < 0 {
		cfg.Concurrency = 0
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	for _, id := range tbl.IDs() {
		if _, ok := probers.Lookup(id); !ok {
			return nil, fmt.Errorf("no prober for platform %q", id)
		}
	}
	return &Scanner{table: tbl, probers: probers, cfg: cfg, log: log}, nil
}

func (s *Scanner) Platforms() []platform.Descriptor {
	return s.table.All()
}

// Select returns a scanner restricted to ids plus the ids that matched no
// platform. An empty selection returns s.
func (s *Scanner) Select(ids []string) (*Scanner, []string) {
	sub, unknown := s.table.Select(ids)
	if sub == s.table {
		return s, unknown
	}
	return &Scanner{table: sub, probers: s.probers, cfg: s.cfg, log: s.log}, unknown
}

// Scan probes every platform concurrently and waits for all of them. The
// report has one result per platform in table order.
func (s *Scanner) Scan(ctx context.Context, handle string) (*Report, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrEmptyHandle
	}

	report := &Report{
		ID:        uuid.NewString(),
		Username:  handle,
		StartedAt: time.Now(),
	}

	descriptors := s.table.All()
	results := make([]Result, len(descriptors))

	// No derived context: one platform failing must not cancel the others.
	var g errgroup.Group
	if s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}
	for i, d := range descriptors {
		g.Go(func() error {
			results[i] = s.resolve(ctx, d, handle)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.CompletedAt = time.Now()

	s.log.WithFields(logrus.Fields{
		"handle":    handle,
		"id":        report.ID,
		"available": report.Count(probe.Available),
		"taken":     report.Count(probe.Taken),
		"elapsed":   report.CompletedAt.Sub(report.StartedAt).String(),
	}).Info("scan complete")

	return report, nil
}

// ScanMany scans each handle against the platforms in platformIDs (all when
// empty). Reports come back in handle order.
func (s *Scanner) ScanMany(ctx context.Context, handles []string, platformIDs []string) ([]*Report, error) {
	sub, unknown := s.Select(platformIDs)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, strings.Join(unknown, ", "))
	}
	for _, h := range handles {
		if strings.TrimSpace(h) == "" {
			return nil, ErrEmptyHandle
		}
	}

	reports := make([]*Report, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		g.Go(func() error {
			r, err := sub.Scan(ctx, h)
			reports[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Check resolves a single platform, retrying and defaulting like Scan.
func (s *Scanner) Check(ctx context.Context, handle, platformID string) (Result, error) {
	d, err := s.lookup(handle, platformID)
	if err != nil {
		return Result{}, err
	}
	return s.resolve(ctx, d, strings.TrimSpace(handle)), nil
}

// CheckRaw runs one unresolved attempt. The outcome may be Unknown.
func (s *Scanner) CheckRaw(ctx context.Context, handle, platformID string) (probe.Outcome, error) {
	d, err := s.lookup(handle, platformID)
	if err != nil {
		return probe.Unknown, err
	}
	return s.attempt(ctx, d, strings.TrimSpace(handle)), nil
}

func (s *Scanner) lookup(handle, platformID string) (platform.Descriptor, error) {
	if strings.TrimSpace(handle) == "" {
		return platform.Descriptor{}, ErrEmptyHandle
	}
	sub, unknown := s.table.Select([]string{platformID})
	if len(unknown) > 0 || sub.Len() == 0 {
		return platform.Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platformID)
	}
	return sub.All()[0], nil
}

func (s *Scanner) resolve(ctx context.Context, d platform.Descriptor, handle string) (res Result) {
	def, _ := probe.ParseOutcome(d.Default)
	log := s.log.WithFields(logrus.Fields{"platform": d.ID, "handle": handle})
	start := time.Now()

	res = Result{
		PlatformID: d.ID,
		Name:       d.Name,
		ProfileURL: d.Profile(handle),
		SignupURL:  d.Signup(handle),
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("probe panicked")
			res.Status = def
			res.Defaulted = true
		}
		res.Elapsed = time.Since(start)
	}()

	dec := policy.Resolve(ctx, func(ctx context.Context) probe.Outcome {
		return s.attempt(ctx, d, handle)
	}, def, log)

	res.Status = dec.Outcome
	res.Attempts = dec.Attempts
	res.Defaulted = dec.Defaulted
	return res
}

func (s *Scanner) attempt(ctx context.Context, d platform.Descriptor, handle string) (out probe.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{"platform": d.ID, "handle": handle, "panic": r}).Error("probe panicked")
			out = probe.Unknown
		}
	}()

	p, ok := s.probers.Lookup(d.ID)
	if !ok {
		return probe.Unknown
	}
	return p.Probe(ctx, handle)
}

// Validate probes each platform's claimed and unclaimed sample handles once
// and reports every platform where they do not come back Taken and Available.
func (s *Scanner) Validate(ctx context.Context, onFailure func(ValidationFailure)) (int, error) {
	if onFailure == nil {
		return 0, fmt.Errorf("onFailure callback is nil")
	}

	descriptors := s.table.All()
	workers := len(descriptors)
	if s.cfg.Concurrency > 0 {
		workers = min(s.cfg.Concurrency, workers)
	}
	if workers == 0 {
		return 0, nil
	}

	jobs := make(chan platform.Descriptor)
	failures := make(chan ValidationFailure, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for d := range jobs {
				if f, ok := s.validate(ctx, d); !ok {
					failures <- f
				}
			}
		}()
	}

	go func() {
		defer close(failures)
		wg.Wait()
	}()

	go func() {
		defer close(jobs)
		for _, d := range descriptors {
			select {
			case <-ctx.Done():
				return
			case jobs <- d:
			}
		}
	}()

	count := 0
	for f := range failures {
		count++
		onFailure(f)
	}

	return count, ctx.Err()
}

func (s *Scanner) validate(ctx context.Context, d platform.Descriptor) (ValidationFailure, bool) {
	f := ValidationFailure{PlatformID: d.ID, Claimed: d.Claimed, Unclaimed: d.Unclaimed}
	if d.Claimed == "" || d.Unclaimed == "" {
		f.Err = fmt.Errorf("missing claimed/unclaimed sample handles")
		return f, false
	}

	f.ClaimedOutcome = s.attempt(ctx, d, d.Claimed)
	f.UnclaimedOutcome = s.attempt(ctx, d, d.Unclaimed)

	ok := f.ClaimedOutcome == probe.Taken && f.UnclaimedOutcome == probe.Available
	return f, ok
}
