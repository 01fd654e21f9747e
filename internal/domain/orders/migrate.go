package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Outcome of an edit to an unbilled order.
type Outcome string

const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeMigrated Outcome = "migrated"
)

// EditResult tells the desk what happened. Refresh asks the client to reload
// the unbilled list; Redirect points at the report of a newly billed order.
type EditResult struct {
	Outcome     Outcome `json:"outcome"`
	Order       *Order  `json:"order"`
	Message     string  `json:"message"`
	Refresh     bool    `json:"refresh"`
	Redirect    string  `json:"redirect,omitempty"`
	MigrationID string  `json:"migrationId,omitempty"`
}

// ReportPath is where the print report of a billed order is served.
func ReportPath(id string) string {
	return "/api/v1/orders/" + id + "/report"
}

// EditUnbilled applies an edit to the unbilled order id. When the edited
// payment mode is still Unbilled the order is updated in place. Otherwise it
// is moved: deleted from the unbilled collection, then created in the billed
// collection with a fresh identity.
func (s *Service) EditUnbilled(ctx context.Context, id string, edited *Order) (*EditResult, error) {
	if err := edited.Validate(); err != nil {
		return nil, err
	}
	original, err := s.unbilled.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if edited.IsUnbilled() {
		return s.updateUnbilled(ctx, original, edited)
	}
	return s.moveToBilled(ctx, original, edited)
}

func (s *Service) updateUnbilled(ctx context.Context, original, edited *Order) (*EditResult, error) {
	upd := edited.Clone()
	upd.ID = original.ID
	upd.SerialNo = original.SerialNo
	upd.CreatedAt = original.CreatedAt

	if err := s.unbilled.Update(ctx, upd); err != nil {
		s.logger.Error().Err(err).Str("order_id", original.ID).Msg("update unbilled order failed")
		return nil, &ActionError{Notice: MsgUpdateFailed, Err: err}
	}
	s.logger.Info().Str("order_id", upd.ID).Str("serial_no", upd.SerialNo).Msg("unbilled order updated")
	return &EditResult{
		Outcome: OutcomeUpdated,
		Order:   upd,
		Message: MsgUnbilledUpdated,
		Refresh: true,
	}, nil
}

// errDeleteStep marks a failure of the unbilled delete, before anything
// changed.
type errDeleteStep struct{ err error }

func (e errDeleteStep) Error() string { return e.err.Error() }
func (e errDeleteStep) Unwrap() error { return e.err }

// settleTimeout bounds the steps that run after the unbilled delete.
const settleTimeout = 30 * time.Second

// settleCtx detaches ctx from its caller's cancellation. Once the unbilled
// order is gone, the move is finished or journaled even if the request is not.
func settleCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func (s *Service) moveToBilled(ctx context.Context, original, edited *Order) (*EditResult, error) {
	m := &Migration{
		UnbilledID:       original.ID,
		UnbilledSerialNo: original.SerialNo,
		Status:           StatusPending,
		Snapshot:         original,
		Payload:          edited.BilledPayload(),
		Attempts:         1,
	}
	if err := s.journal.Create(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("order_id", original.ID).Msg("journal order move failed")
		return nil, &ActionError{Notice: MsgUpdateFailed, Err: err}
	}
	log := s.logger.With().Str("order_id", original.ID).Str("migration_id", m.ID).Logger()

	var billed *Order
	var err error
	if s.tx != nil {
		billed, err = s.moveInTx(ctx, m)
	} else {
		billed, err = s.moveCompensated(ctx, original, m, log)
	}

	settle, cancel := settleCtx(ctx)
	defer cancel()

	if err != nil {
		var del errDeleteStep
		notice := MsgMoveFailed
		if errors.As(err, &del) {
			notice = MsgUpdateFailed
		}
		if m.Status == StatusPending {
			m.fail(StatusFailed, err)
		}
		s.saveJournal(settle, m, log)
		log.Error().Err(err).Str("status", m.Status).Msg("order move failed")
		return nil, &ActionError{
			Notice:      notice,
			MigrationID: m.ID,
			Err:         fmt.Errorf("%w: %v", ErrMigrationFailed, err),
		}
	}

	// The transactional path commits the completed entry with the move.
	if m.Status != StatusCompleted {
		m.complete(billed)
		s.saveJournal(settle, m, log)
	}
	log.Info().Str("billed_id", billed.ID).Str("billed_serial_no", billed.SerialNo).Msg("order moved to billed")

	return &EditResult{
		Outcome:     OutcomeMigrated,
		Order:       billed,
		Message:     MsgOrderMoved,
		Redirect:    ReportPath(billed.ID),
		MigrationID: m.ID,
	}, nil
}

// moveInTx deletes, creates and completes the journal entry in one
// transaction, so a failure leaves the unbilled order where it was.
func (s *Service) moveInTx(ctx context.Context, m *Migration) (*Order, error) {
	var billed *Order
	var done Migration
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.unbilled.Delete(ctx, m.UnbilledID); err != nil {
			return errDeleteStep{err}
		}
		p := m.Payload.Clone()
		if err := s.billed.Create(ctx, p); err != nil {
			return err
		}
		done = *m
		done.complete(p)
		if err := s.journal.Update(ctx, &done); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		billed = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	*m = done
	return billed, nil
}

// moveCompensated deletes then creates. A failed create is compensated by
// restoring the snapshot; if that fails too the journal entry is marked
// stranded for the reconciler.
func (s *Service) moveCompensated(ctx context.Context, original *Order, m *Migration, log zerolog.Logger) (*Order, error) {
	if err := s.unbilled.Delete(ctx, original.ID); err != nil {
		return nil, errDeleteStep{err}
	}
	ctx, cancel := settleCtx(ctx)
	defer cancel()

	p := m.Payload.Clone()
	createErr := s.billed.Create(ctx, p)
	if createErr == nil {
		return p, nil
	}

	if err := s.unbilled.Restore(ctx, original); err != nil {
		log.Error().Err(err).Msg("restoring unbilled order failed, order is stranded")
		m.fail(StatusStranded, fmt.Errorf("create: %v; restore: %v", createErr, err))
		return nil, createErr
	}
	log.Warn().Err(createErr).Msg("billed create failed, unbilled order restored")
	m.fail(StatusCompensated, createErr)
	return nil, createErr
}

// saveJournal persists m. The desk action has already happened by now, so a
// journal failure is logged rather than returned.
func (s *Service) saveJournal(ctx context.Context, m *Migration, log zerolog.Logger) {
	if err := s.journal.Update(ctx, m); err != nil {
		log.Error().Err(err).Str("status", m.Status).Msg("journal update failed")
	}
}

// RetryMigration completes a stranded move by creating its billed order.
func (s *Service) RetryMigration(ctx context.Context, id string) (*Migration, error) {
	m, err := s.journal.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusStranded {
		return nil, fmt.Errorf("%w: migration %s is %s, only stranded moves can be retried", ErrInvalid, id, m.Status)
	}
	if err := s.completeStranded(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// completeStranded claims m in the journal and creates its billed order. The
// claim moves the entry from stranded to retrying, so concurrent retries in
// any process create at most one billed order. An entry whose final journal
// write fails stays retrying and is left for an operator.
func (s *Service) completeStranded(ctx context.Context, m *Migration) error {
	claimed, err := s.journal.Transition(ctx, m.ID, StatusStranded, StatusRetrying)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("%w: %s", ErrMigrationConflict, m.ID)
	}

	ctx, cancel := settleCtx(ctx)
	defer cancel()
	log := s.logger.With().Str("order_id", m.UnbilledID).Str("migration_id", m.ID).Logger()

	cur, err := s.journal.Get(ctx, m.ID)
	if err != nil {
		s.release(ctx, m.ID, log)
		return err
	}
	*m = *cur

	m.Attempts++
	p := m.Payload.BilledPayload()
	if err := s.billed.Create(ctx, p); err != nil {
		m.fail(StatusStranded, err)
		s.saveJournal(ctx, m, log)
		log.Error().Err(err).Int("attempts", m.Attempts).Msg("stranded order move retry failed")
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	m.complete(p)
	if err := s.journal.Update(ctx, m); err != nil {
		log.Error().Err(err).Str("billed_id", p.ID).
			Msg("stranded order move completed but journal update failed, entry left retrying")
		return nil
	}
	log.Info().Str("billed_id", p.ID).Msg("stranded order move completed")
	return nil
}

func (s *Service) release(ctx context.Context, id string, log zerolog.Logger) {
	if _, err := s.journal.Transition(ctx, id, StatusRetrying, StatusStranded); err != nil {
		log.Error().Err(err).Msg("releasing migration claim failed")
	}
}
