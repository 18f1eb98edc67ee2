package search

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"vrp-search-service/internal/config"
	"vrp-search-service/internal/platform/cputime"
)

// runBranches evaluates one perturbation per branch concurrently on clones of
// the reference and returns the cheaper branch, the first one on ties.
// A branch always runs to completion; the wait is only bounded once ctx is
// cancelled, by cfg.ShutdownTimeout.
func (e *Engine) runBranches(ctx context.Context) (*branch, error) {
	// Operators are picked here so the orchestrator rng stays single-threaded.
	picks := make([]int, len(e.branches))
	for i, b := range e.branches {
		picks[i] = e.selectOp(len(b.operators))
	}

	var g errgroup.Group
	for i, b := range e.branches {
		g.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			sw := cputime.Start()
			err := b.run(e.reference, picks[i])
			b.cpu = sw.Elapsed()
			if err != nil {
				return fmt.Errorf("branch %d: %w", i, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		timer := time.NewTimer(e.cfg.ShutdownTimeout)
		defer timer.Stop()
		select {
		case err = <-done:
		case <-timer.C:
			return nil, fmt.Errorf("%w (%s)", ErrShutdownTimeout, e.cfg.ShutdownTimeout)
		}
	}
	if err != nil {
		return nil, err
	}

	winner := e.branches[0]
	spent, total := 0.0, 0.0
	for _, b := range e.branches {
		if b.sol.F < winner.sol.F {
			winner = b
		}
		spent = max(spent, b.cpu)
		total += b.cpu
	}
	if e.cfg.CPUAccounting == config.CPUSum {
		spent = total
	}
	e.branchCPU += spent
	return winner, nil
}
