package orders

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const (
	reconcileBatch = 100
	// defaultStaleAfter is well past settleTimeout, so no live move is
	// still working on an entry this old.
	defaultStaleAfter = 10 * time.Minute
)

// ReconcileReport summarizes one reconciler run.
type ReconcileReport struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Promoted  int `json:"promoted"`
	Abandoned int `json:"abandoned"`
}

// Reconciler finishes stranded order moves: orders deleted from the unbilled
// collection whose billed record was never created.
type Reconciler struct {
	svc        *Service
	logger     zerolog.Logger
	running    atomic.Bool
	timeout    time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func NewReconciler(svc *Service, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		svc:        svc,
		logger:     logger,
		timeout:    5 * time.Minute,
		staleAfter: defaultStaleAfter,
		now:        time.Now,
	}
}

// RunOnce settles stale pending entries, then retries every stranded journal
// entry once. Individual failures are combined into the returned error; the
// report is always filled in.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	errs := r.settlePending(ctx, &report)
	if ctx.Err() != nil {
		return report, multierr.Append(errs, ctx.Err())
	}

	// Completed entries leave the stranded set while failed ones stay at the
	// front, so offset counts the entries this run has already seen.
	seen := make(map[string]bool)
	offset := 0
	for {
		batch, _, err := r.svc.journal.List(ctx, StatusStranded, reconcileBatch, offset)
		if err != nil {
			return report, multierr.Append(errs, err)
		}
		progressed := false
		for _, m := range batch {
			if seen[m.ID] {
				offset++
				continue
			}
			seen[m.ID] = true
			progressed = true
			report.Scanned++
			err := r.svc.completeStranded(ctx, m)
			switch {
			case err == nil:
				report.Completed++
			case errors.Is(err, ErrMigrationConflict):
				report.Skipped++
			default:
				report.Failed++
				offset++
				errs = multierr.Append(errs, err)
			}
		}
		if !progressed {
			return report, errs
		}
		if ctx.Err() != nil {
			return report, multierr.Append(errs, ctx.Err())
		}
	}
}

// settlePending resolves pending entries older than staleAfter. Their move
// was interrupted before the journal recorded an outcome. When the unbilled
// order is gone the entry becomes stranded and is completed by this run;
// otherwise nothing was moved and the entry is marked failed.
func (r *Reconciler) settlePending(ctx context.Context, report *ReconcileReport) error {
	var errs error
	cutoff := r.now().Add(-r.staleAfter)
	seen := make(map[string]bool)
	offset := 0
	for {
		batch, _, err := r.svc.journal.List(ctx, StatusPending, reconcileBatch, offset)
		if err != nil {
			return multierr.Append(errs, err)
		}
		progressed := false
		for _, m := range batch {
			if seen[m.ID] {
				offset++
				continue
			}
			seen[m.ID] = true
			progressed = true
			if m.UpdatedAt.After(cutoff) {
				offset++
				continue
			}

			to, err := r.pendingOutcome(ctx, m)
			if err != nil {
				offset++
				errs = multierr.Append(errs, err)
				continue
			}
			moved, err := r.svc.journal.Transition(ctx, m.ID, StatusPending, to)
			if err != nil {
				offset++
				errs = multierr.Append(errs, err)
				continue
			}
			if !moved {
				continue
			}
			if to == StatusStranded {
				report.Promoted++
			} else {
				report.Abandoned++
			}
			r.logger.Warn().Str("migration_id", m.ID).Str("order_id", m.UnbilledID).
				Str("status", to).Msg("stale pending order move settled")
		}
		if !progressed {
			return errs
		}
		if ctx.Err() != nil {
			return errs
		}
	}
}

func (r *Reconciler) pendingOutcome(ctx context.Context, m *Migration) (string, error) {
	_, err := r.svc.unbilled.Get(ctx, m.UnbilledID)
	switch {
	case errors.Is(err, ErrNotFound):
		return StatusStranded, nil
	case err != nil:
		return "", err
	default:
		return StatusFailed, nil
	}
}

// Schedule registers the reconciler on c. Runs that would overlap a run still
// in progress are skipped.
func (r *Reconciler) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, r.tick)
}

func (r *Reconciler) tick() {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn().Msg("reconcile still running, skipping")
		return
	}
	defer r.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	report, err := r.RunOnce(ctx)
	evt := r.logger.Info()
	if err != nil {
		evt = r.logger.Error().Err(err)
	}
	evt.Int("scanned", report.Scanned).
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("promoted", report.Promoted).
		Int("abandoned", report.Abandoned).
		Msg("reconcile finished")
}
