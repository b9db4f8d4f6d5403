package replay

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParseFunc turns one replay file into a Replay.
type ParseFunc func(ctx context.Context, path string) (*Replay, error)

// Result is one loaded file, tagged with its position in the input.
type Result struct {
	Index  int
	Path   string
	Replay *Replay
	Err    error
}

type Loader struct {
	Parse ParseFunc
	// Workers bounds concurrent parses. Zero uses GOMAXPROCS.
	Workers int
}

func (l *Loader) workers() int {
	if l.Workers > 0 {
		return l.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Load parses every path and returns the replays in input order. The first
// failure cancels the remaining parses.
func (l *Loader) Load(ctx context.Context, paths []string) ([]*Replay, error) {
	out := make([]*Replay, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers())

	for i, path := range paths {
		g.Go(func() error {
			r, err := l.Parse(ctx, path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stream parses every path and delivers results on the returned channel in
// input order, as soon as each one and all before it are done. Failures are
// reported per file and do not stop the rest. The channel is closed when all
// files are handled or ctx is cancelled.
func (l *Loader) Stream(ctx context.Context, paths []string) <-chan Result {
	out := make(chan Result)
	slots := make([]chan Result, len(paths))
	for i := range slots {
		slots[i] = make(chan Result, 1)
	}

	sem := make(chan struct{}, l.workers())
	go func() {
		for i, path := range paths {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				slots[i] <- Result{Index: i, Path: path, Err: ctx.Err()}
				continue
			}
			go func() {
				defer func() { <-sem }()
				r, err := l.Parse(ctx, path)
				slots[i] <- Result{Index: i, Path: path, Replay: r, Err: err}
			}()
		}
	}()

	go func() {
		defer close(out)
		for _, slot := range slots {
			var res Result
			select {
			case res = <-slot:
			case <-ctx.Done():
				return
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
