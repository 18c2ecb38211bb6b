// Package restore drives a snapshot through the download, validate,
// apply and verify phases and reports progress as an ordered event
// stream.
package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/objectstore"
	"github.com/analogrithems/rustored/internal/target"
)

// copyChunk is the transfer unit during download; cancellation is
// observed between chunks.
const copyChunk = 64 * 1024

// ErrBusy is returned when a run is requested while another is active.
var ErrBusy = errors.New("a restore is already running")

// Phase identifies a pipeline stage.
type Phase int

const (
	PhaseDownload Phase = iota
	PhaseValidate
	PhaseApply
	PhaseVerify
)

func (p Phase) String() string {
	switch p {
	case PhaseDownload:
		return "download"
	case PhaseValidate:
		return "validate"
	case PhaseApply:
		return "apply"
	case PhaseVerify:
		return "verify"
	}
	return "unknown"
}

// Event is one entry in the ordered stream a run emits. The stream ends
// with exactly one Outcome, after which the channel is closed.
type Event interface{ isEvent() }

// PhaseStarted marks the transition into a pipeline stage.
type PhaseStarted struct{ Phase Phase }

// Progress reports work done within a phase. Total is -1 when the
// amount of work is not known up front.
type Progress struct {
	Phase  Phase
	Done   int64
	Total  int64
	Detail string
}

// OutcomeCode classifies how a run ended.
type OutcomeCode int

const (
	OutcomeSuccess OutcomeCode = iota
	OutcomeValidationFailed
	OutcomeTransportFailed
	OutcomeApplyFailed
	OutcomeCancelled
)

func (c OutcomeCode) String() string {
	switch c {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationFailed:
		return "validation failed"
	case OutcomeTransportFailed:
		return "transport failed"
	case OutcomeApplyFailed:
		return "apply failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Outcome is the terminal event of a run.
type Outcome struct {
	Code   OutcomeCode
	Reason string
}

func (PhaseStarted) isEvent() {}
func (Progress) isEvent()     {}
func (Outcome) isEvent()      {}

// Fetcher retrieves a snapshot body from the object store.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

// Orchestrator runs restores one at a time. The zero value is not
// usable; construct with New.
type Orchestrator struct {
	stagingDir string
	log        zerolog.Logger

	mu   sync.Mutex
	busy bool
}

// New builds an orchestrator that stages downloads under dir.
func New(dir string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{stagingDir: dir, log: log}
}

// Running reports whether a restore is currently in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Run starts the pipeline for one snapshot and returns its event
// stream. Only one run may be active; a concurrent call fails with
// ErrBusy. Cancelling ctx stops the run at the next chunk or phase
// boundary, except that an apply already underway is never interrupted.
func (o *Orchestrator) Run(ctx context.Context, snap objectstore.Snapshot, fetch Fetcher, adapter target.Adapter) (<-chan Event, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.busy = true
	o.mu.Unlock()

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer func() {
			o.mu.Lock()
			o.busy = false
			o.mu.Unlock()
		}()
		outcome := o.run(ctx, snap, fetch, adapter, events)
		o.log.Info().
			Str("snapshot", snap.Key).
			Str("target", adapter.Name()).
			Str("outcome", outcome.Code.String()).
			Msg("restore finished")
		events <- outcome
	}()
	return events, nil
}

// run executes the phases and returns the terminal outcome. Every
// staged artifact is removed before returning, whatever the result.
func (o *Orchestrator) run(ctx context.Context, snap objectstore.Snapshot, fetch Fetcher, adapter target.Adapter, events chan<- Event) Outcome {
	events <- PhaseStarted{Phase: PhaseDownload}
	path, err := o.download(ctx, snap, fetch, events)
	if path != "" {
		defer os.Remove(path)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Code: OutcomeCancelled, Reason: "cancelled during download"}
		}
		return Outcome{Code: OutcomeTransportFailed, Reason: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Code: OutcomeCancelled, Reason: "cancelled after download"}
	}

	events <- PhaseStarted{Phase: PhaseValidate}
	if err := adapter.Validate(ctx, path); err != nil {
		return Outcome{Code: OutcomeValidationFailed, Reason: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Code: OutcomeCancelled, Reason: "cancelled before apply; target untouched"}
	}

	// From here the target is being written to. The apply itself runs
	// to completion even if a cancel arrives while it is in flight.
	events <- PhaseStarted{Phase: PhaseApply}
	applyCtx := context.WithoutCancel(ctx)
	err = adapter.Apply(applyCtx, path, func(p target.Progress) {
		events <- Progress{Phase: PhaseApply, Done: p.Done, Total: p.Total, Detail: p.Detail}
	})
	if err != nil {
		return Outcome{Code: OutcomeApplyFailed, Reason: err.Error()}
	}
	if ctx.Err() != nil {
		// The apply already completed; report its real result rather
		// than pretending the run was stopped in time.
		return Outcome{Code: OutcomeSuccess, Reason: "cancellation accepted after apply began; apply completed, verification skipped"}
	}

	events <- PhaseStarted{Phase: PhaseVerify}
	if err := adapter.Verify(applyCtx); err != nil {
		return Outcome{Code: OutcomeApplyFailed, Reason: fmt.Sprintf("verification failed, target may be partially restored: %v", err)}
	}
	return Outcome{Code: OutcomeSuccess, Reason: fmt.Sprintf("%s restored into %s", filepath.Base(snap.Key), adapter.Name())}
}

// download stages the snapshot body into a local file, reporting byte
// progress and honouring cancellation between chunks.
func (o *Orchestrator) download(ctx context.Context, snap objectstore.Snapshot, fetch Fetcher, events chan<- Event) (string, error) {
	body, size, err := fetch.Fetch(ctx, snap.Key)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", snap.Key, err)
	}
	defer body.Close()

	if err := os.MkdirAll(o.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create staging directory: %w", err)
	}
	f, err := os.CreateTemp(o.stagingDir, "stage-*-"+filepath.Base(snap.Key))
	if err != nil {
		return "", fmt.Errorf("cannot create staging file: %w", err)
	}
	path := f.Name()

	var done int64
	buf := make([]byte, copyChunk)
	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			return path, err
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return path, fmt.Errorf("failed writing staging file: %w", werr)
			}
			done += int64(n)
			events <- Progress{Phase: PhaseDownload, Done: done, Total: size, Detail: downloadDetail(done, size)}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			return path, fmt.Errorf("failed reading %s: %w", snap.Key, rerr)
		}
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("failed closing staging file: %w", err)
	}
	o.log.Debug().Str("snapshot", snap.Key).Int64("bytes", done).Msg("snapshot staged")
	return path, nil
}

func downloadDetail(done, total int64) string {
	if total < 0 {
		return humanize.IBytes(uint64(done)) + " downloaded"
	}
	return fmt.Sprintf("%s of %s", humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)))
}
