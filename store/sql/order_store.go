package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-topup/core"
	"github.com/uptrace/bun"
)

const defaultUpdateAttempts = 5

// errVersionConflict marks a lost compare-and-swap. It never leaves the store.
var errVersionConflict = errors.New("sqlstore: order version conflict")

type OrderStore struct {
	db          *bun.DB
	orders      repository.Repository[*orderRecord]
	events      repository.Repository[*orderEventRecord]
	maxAttempts int
	now         func() time.Time
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	orders := repository.NewRepository[*orderRecord](db, orderHandlers())
	if validator, ok := orders.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	events := repository.NewRepository[*orderEventRecord](db, orderEventHandlers())
	if validator, ok := events.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order event repository wiring: %w", err)
		}
	}
	return &OrderStore{
		db:          db,
		orders:      orders,
		events:      events,
		maxAttempts: defaultUpdateAttempts,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *OrderStore) Put(ctx context.Context, order core.Order) error {
	if s == nil || s.db == nil {
		return core.NewInternalError("sqlstore: order store is not configured", nil)
	}
	reference := strings.TrimSpace(order.Reference)
	if reference == "" {
		return core.NewError(core.ErrorKindInvalidInput, "reference is required", nil)
	}
	order.Reference = reference
	now := s.now()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := newOrderRecord(order, now)
		if _, err := s.orders.CreateTx(ctx, tx, record); err != nil {
			return err
		}
		for _, eventID := range order.SeenEventIDs() {
			if _, err := s.events.CreateTx(ctx, tx, newOrderEventRecord(record, eventID, now)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.NewDuplicateReferenceError(reference)
		}
		return core.NewInternalError("sqlstore: put order", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, reference string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, core.NewInternalError("sqlstore: order store is not configured", nil)
	}
	reference = strings.TrimSpace(reference)
	record, err := findOrder(ctx, s.db, reference)
	if err != nil {
		return core.Order{}, err
	}
	events, err := findOrderEvents(ctx, s.db, record.ID)
	if err != nil {
		return core.Order{}, err
	}
	return record.toDomain(events), nil
}

// Update runs mutate against the committed row inside a transaction and
// commits only if the row version is unchanged. A lost race reloads and
// re-runs mutate, up to maxAttempts.
func (s *OrderStore) Update(ctx context.Context, reference string, mutate core.OrderMutator) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, core.NewInternalError("sqlstore: order store is not configured", nil)
	}
	if mutate == nil {
		return core.Order{}, core.NewInternalError("order mutator is required", nil)
	}
	reference = strings.TrimSpace(reference)

	attempts := s.maxAttempts
	if attempts <= 0 {
		attempts = defaultUpdateAttempts
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		order, err := s.updateOnce(ctx, reference, mutate)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		return order, err
	}
	return core.Order{}, core.NewInternalError(
		fmt.Sprintf("sqlstore: order %q kept changing after %d attempts", reference, attempts),
		errVersionConflict,
	)
}

func (s *OrderStore) updateOnce(ctx context.Context, reference string, mutate core.OrderMutator) (core.Order, error) {
	var out core.Order
	var mutateErr error
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findOrder(ctx, tx, reference)
		if err != nil {
			return err
		}
		events, err := findOrderEvents(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		current := record.toDomain(events)
		working := current.Clone()
		if err := mutate(&working); err != nil {
			if errors.Is(err, core.ErrOrderUnchanged) {
				out = current
				return nil
			}
			mutateErr = err
			return err
		}
		if err := ctx.Err(); err != nil {
			return core.NewInternalError("update order cancelled", err)
		}

		core.PreserveImmutable(&working, current)
		now := s.now()
		previousVersion := record.Version
		record.applyMutable(working, now)
		record.Version = previousVersion + 1

		res, err := tx.NewUpdate().
			Model(record).
			Column("provider_ref", "payment_url", "status", "version", "updated_at").
			Where("id = ?", record.ID).
			Where("version = ?", previousVersion).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, affectedErr := res.RowsAffected(); affectedErr == nil && affected == 0 {
			return errVersionConflict
		}

		for _, eventID := range working.SeenEventIDs() {
			if current.HasSeenEvent(eventID) {
				continue
			}
			if _, err := s.events.CreateTx(ctx, tx, newOrderEventRecord(record, eventID, now)); err != nil {
				if isUniqueViolation(err) {
					return errVersionConflict
				}
				return err
			}
		}

		working.Version = record.Version
		working.UpdatedAt = record.UpdatedAt
		out = working
		return nil
	})
	if mutateErr != nil {
		return core.Order{}, mutateErr
	}
	if err != nil {
		var rich *goerrors.Error
		if errors.Is(err, errVersionConflict) || goerrors.As(err, &rich) {
			return core.Order{}, err
		}
		return core.Order{}, core.NewInternalError("sqlstore: update order", err)
	}
	return out.Clone(), nil
}

// ListByStatus returns up to limit orders in status, oldest first.
func (s *OrderStore) ListByStatus(ctx context.Context, status core.OrderStatus, limit int) ([]core.Order, error) {
	if s == nil || s.orders == nil {
		return nil, core.NewInternalError("sqlstore: order store is not configured", nil)
	}
	if !status.Valid() {
		return nil, core.NewError(core.ErrorKindInvalidInput, fmt.Sprintf("unknown order status %q", status), nil)
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.orders.List(ctx,
		repository.SelectBy("status", "=", string(status)),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, core.NewInternalError("sqlstore: list orders", err)
	}
	out := make([]core.Order, 0, len(records))
	for _, record := range records {
		events, err := findOrderEvents(ctx, s.db, record.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, record.toDomain(events))
	}
	return out, nil
}

func findOrder(ctx context.Context, db bun.IDB, reference string) (*orderRecord, error) {
	record := &orderRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewOrderNotFoundError(reference)
		}
		return nil, core.NewInternalError("sqlstore: load order", err)
	}
	return record, nil
}

func findOrderEvents(ctx context.Context, db bun.IDB, orderID string) ([]orderEventRecord, error) {
	var events []orderEventRecord
	err := db.NewSelect().
		Model(&events).
		Where("?TableAlias.order_id = ?", orderID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewInternalError("sqlstore: load order events", err)
	}
	return events, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
