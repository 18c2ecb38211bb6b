// Package target implements the restore backends. Every backend satisfies
// Adapter: a side-effect-free connection probe, a side-effect-free artifact
// validation, the mutating apply, and a post-restore verification.
package target

import (
	"context"
	"time"
)

// probeTimeout bounds the reachability checks in TestConnection.
const probeTimeout = 5 * time.Second

// Progress reports apply-phase progress. Total is -1 when the adapter
// cannot tell how much work remains.
type Progress struct {
	Done   int64
	Total  int64
	Detail string
}

// ProgressFunc receives apply-phase progress updates. May be nil.
type ProgressFunc func(Progress)

// Adapter is the capability set every restore backend provides. Validate
// must not touch the target system; Apply is the only operation allowed to
// mutate it.
type Adapter interface {
	// Name returns the human-readable backend name.
	Name() string

	// TestConnection probes the target with a bounded timeout. It never
	// mutates target state.
	TestConnection(ctx context.Context) error

	// Validate inspects the staged artifact's format without touching the
	// target system.
	Validate(ctx context.Context, path string) error

	// Apply restores the staged artifact into the target, creating the
	// destination container (database, index or collection) if absent.
	Apply(ctx context.Context, path string, progress ProgressFunc) error

	// Verify checks the target after a successful Apply.
	Verify(ctx context.Context) error
}

func report(progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
}
