package network

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/dispenser"
)

// Host suffix range probed within a prefix. .0 is the network address
// and .255 the broadcast address, so neither is scanned.
const (
	firstSuffix = 1
	lastSuffix  = 254
)

// probeFunc matches Prober.Probe and is swapped out in tests.
type probeFunc func(ctx context.Context, address string) (dispenser.Reachable, error)

// Scanner sweeps a /24 prefix for dispensers using a bounded pool of
// probe workers.
//
// Thread Safety: Scan may be called concurrently; the scanner holds no
// mutable state between sweeps.
type Scanner struct {
	probe   probeFunc
	workers int
	logger  *slog.Logger
}

// NewScanner creates a Scanner that probes through p with at most
// workers concurrent probes.
func NewScanner(p *Prober, workers int, logger *slog.Logger) *Scanner {
	if workers <= 0 {
		workers = 1
	}
	return &Scanner{
		probe:   p.Probe,
		workers: workers,
		logger:  logger,
	}
}

// Scan probes every host suffix in prefix and returns the dispensers
// that answered, ordered by suffix. When two addresses report the same
// identity the lower suffix wins. Probe failures are expected (most
// addresses are empty) and are not returned as errors; only context
// cancellation aborts the sweep.
func (s *Scanner) Scan(ctx context.Context, prefix string) ([]dispenser.Reachable, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	start := time.Now()

	results := make([]*dispenser.Reachable, lastSuffix+1)

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

Suffixes:
	for suffix := firstSuffix; suffix <= lastSuffix; suffix++ {
		select {
		case <-ctx.Done():
			break Suffixes
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(suffix int) {
			defer wg.Done()
			defer func() { <-sem }()

			address := prefix + strconv.Itoa(suffix)
			found, err := s.probe(ctx, address)
			if err != nil {
				return
			}
			results[suffix] = &found
		}(suffix)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var reachable []dispenser.Reachable
	for suffix := firstSuffix; suffix <= lastSuffix; suffix++ {
		found := results[suffix]
		if found == nil {
			continue
		}
		if _, dup := seen[found.Identity]; dup {
			s.logger.Warn("duplicate identity during scan",
				"identity", found.Identity,
				"address", found.Address)
			continue
		}
		seen[found.Identity] = struct{}{}
		reachable = append(reachable, *found)
	}

	s.logger.Debug("scan complete",
		"prefix", prefix,
		"found", len(reachable),
		"duration", time.Since(start).Round(time.Millisecond).String())

	return reachable, nil
}
