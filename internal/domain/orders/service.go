package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/labdesk/labdesk/internal/domain/doctor"
)

const defaultBulkConcurrency = 16

// DoctorNames resolves referring doctors for display and search.
type DoctorNames interface {
	NamesOrEmpty(ctx context.Context) doctor.Names
}

type Service struct {
	unbilled Repository
	billed   Repository
	journal  JournalRepository
	doctors  DoctorNames
	tx       TxRunner
	bulk     int
	logger   zerolog.Logger
}

func NewService(unbilled, billed Repository, journal JournalRepository, doctors DoctorNames, logger zerolog.Logger) *Service {
	return &Service{
		unbilled: unbilled,
		billed:   billed,
		journal:  journal,
		doctors:  doctors,
		bulk:     defaultBulkConcurrency,
		logger:   logger,
	}
}

// SetTxRunner makes order moves transactional. Without one, a failed billed
// create is compensated by restoring the unbilled order.
func (s *Service) SetTxRunner(tx TxRunner) {
	s.tx = tx
}

// SetBulkConcurrency bounds the deletes a bulk request runs at once.
func (s *Service) SetBulkConcurrency(n int) {
	if n > 0 {
		s.bulk = n
	}
}

func (s *Service) names(ctx context.Context) doctor.Names {
	if s.doctors == nil {
		return doctor.Names{}
	}
	return s.doctors.NamesOrEmpty(ctx)
}

func views(list []*Order, names doctor.Names) []*View {
	out := make([]*View, 0, len(list))
	for _, o := range list {
		out = append(out, &View{Order: o, DoctorName: names.NameFor(o.ReferredBy)})
	}
	return out
}

// -- Unbilled --

// ListUnbilled returns one page of filtered unbilled orders with doctor names.
func (s *Service) ListUnbilled(ctx context.Context, f Filter, limit, offset int) ([]*View, int, error) {
	names := s.names(ctx)
	list, total, err := s.unbilled.List(ctx, NewQuery(f, names, limit, offset))
	if err != nil {
		s.logger.Error().Err(err).Str("search", f.Search).Msg("list unbilled orders failed")
		return nil, 0, err
	}
	return views(list, names), total, nil
}

func (s *Service) GetUnbilled(ctx context.Context, id string) (*View, error) {
	o, err := s.unbilled.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{Order: o, DoctorName: s.names(ctx).NameFor(o.ReferredBy)}, nil
}

// CreateUnbilled records an order from intake. Intake orders are always
// unbilled; a blank payment mode is filled in.
func (s *Service) CreateUnbilled(ctx context.Context, o *Order) error {
	if o.PaymentMode == "" {
		o.PaymentMode = PaymentModeUnbilled
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if !o.IsUnbilled() {
		return fmt.Errorf("%w: intake orders must have paymentMode %q", ErrInvalid, PaymentModeUnbilled)
	}
	return s.unbilled.Create(ctx, o)
}

// DeleteUnbilled removes one unbilled order.
func (s *Service) DeleteUnbilled(ctx context.Context, id string) error {
	if err := s.unbilled.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.logger.Error().Err(err).Str("order_id", id).Msg("delete unbilled order failed")
		return &ActionError{Notice: MsgDeleteFailed, Err: err}
	}
	s.logger.Info().Str("order_id", id).Msg("unbilled order deleted")
	return nil
}

// -- Bulk delete --

type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BulkResult struct {
	Deleted []string      `json:"deleted"`
	Failed  []BulkFailure `json:"failed"`
	Message string        `json:"message"`
}

// OK reports whether every delete succeeded.
func (r *BulkResult) OK() bool {
	return len(r.Failed) == 0
}

// BulkDelete issues one independent delete per id and waits for all of them.
// There is no all-or-nothing guarantee. The returned error combines the
// individual failures; the result is always complete.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (*BulkResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no orders selected", ErrInvalid)
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulk)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			errs[i] = s.unbilled.Delete(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkResult{Deleted: []string{}, Failed: []BulkFailure{}}
	var combined error
	for i, id := range ids {
		if errs[i] != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Error: errs[i].Error()})
			combined = multierr.Append(combined, fmt.Errorf("delete %s: %w", id, errs[i]))
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}

	if combined != nil {
		res.Message = MsgBulkFailed
		s.logger.Error().Err(combined).
			Int("deleted", len(res.Deleted)).
			Int("failed", len(multierr.Errors(combined))).
			Msg("bulk delete partially failed")
		return res, combined
	}
	res.Message = MsgBulkDeleted
	s.logger.Info().Int("deleted", len(res.Deleted)).Msg("bulk delete completed")
	return res, nil
}

// BulkDeleteRequest selects orders either by id or as "everything matching a
// filter except these".
type BulkDeleteRequest struct {
	IDs    []string `json:"ids"`
	All    bool     `json:"all"`
	Search string   `json:"search"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Except []string `json:"except"`
}

// Resolve turns the request into the ids to delete. A select-all request
// selects every order matching its filter and then deselects Except.
func (s *Service) Resolve(ctx context.Context, req BulkDeleteRequest) ([]string, error) {
	if !req.All {
		return dedupe(req.IDs), nil
	}
	f, err := ParseFilter(req.Search, req.From, req.To)
	if err != nil {
		return nil, err
	}
	list, _, err := s.unbilled.List(ctx, NewQuery(f, s.names(ctx), 0, 0))
	if err != nil {
		return nil, err
	}
	filtered := make([]string, 0, len(list))
	for _, o := range list {
		filtered = append(filtered, o.ID)
	}

	sel := NewSelection()
	sel.ToggleAll(filtered)
	for _, id := range req.Except {
		if sel.Selected(id) {
			sel.Toggle(id)
		}
	}
	return sel.IDs(), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// -- Billed --

// PlaceOrder creates a billed order directly.
func (s *Service) PlaceOrder(ctx context.Context, o *Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.IsUnbilled() {
		return fmt.Errorf("%w: billed orders need a payment mode other than %q", ErrInvalid, PaymentModeUnbilled)
	}
	p := o.BilledPayload()
	if err := s.billed.Create(ctx, p); err != nil {
		return err
	}
	*o = *p
	return nil
}

func (s *Service) ListBilled(ctx context.Context, f Filter, limit, offset int) ([]*View, int, error) {
	names := s.names(ctx)
	list, total, err := s.billed.List(ctx, NewQuery(f, names, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	return views(list, names), total, nil
}

func (s *Service) GetBilled(ctx context.Context, id string) (*View, error) {
	o, err := s.billed.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{Order: o, DoctorName: s.names(ctx).NameFor(o.ReferredBy)}, nil
}

// -- Journal --

func (s *Service) ListMigrations(ctx context.Context, status string, limit, offset int) ([]*Migration, int, error) {
	if status != "" && !validMigrationStatuses[status] {
		return nil, 0, fmt.Errorf("%w: unknown migration status %q", ErrInvalid, status)
	}
	return s.journal.List(ctx, status, limit, offset)
}
