package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rizalap/digishop/internal/orders"
)

// Store implements orders.Store on Postgres. The order header and its
// lines live in separate tables; Create writes both inside one
// transaction so a header is never visible without lines.
type Store struct {
	db      *sql.DB
	log     *logrus.Logger
	nowFunc func() time.Time
	idFunc  func() string
}

// NewStore creates a Postgres-backed order store.
func NewStore(db *sql.DB, log *logrus.Logger) *Store {
	return &Store{
		db:      db,
		log:     log,
		nowFunc: time.Now,
		idFunc:  uuid.NewString,
	}
}

const headerColumns = `id, user_id, user_name, user_email, user_phone, total, status,
	cancel_status, cancel_reason, cancel_requested_at, cancel_confirmed_at, created_at`

func scanHeader(row interface{ Scan(...any) error }) (*orders.Order, error) {
	var (
		o           orders.Order
		requestedAt sql.NullTime
		confirmedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.Buyer.UserID,
		&o.Buyer.Name,
		&o.Buyer.Email,
		&o.Buyer.Phone,
		&o.Total,
		&o.Status,
		&o.Cancel.Status,
		&o.Cancel.Reason,
		&requestedAt,
		&confirmedAt,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if requestedAt.Valid {
		t := requestedAt.Time
		o.Cancel.RequestedAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		o.Cancel.ConfirmedAt = &t
	}
	return &o, nil
}

// Create inserts the order header and all lines in one transaction.
func (s *Store) Create(ctx context.Context, buyer orders.Buyer, lines []orders.Line) (*orders.Order, error) {
	o, err := orders.NewOrder(s.idFunc(), buyer, lines, s.nowFunc().UTC())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.Errorf("failed to begin transaction: %v", err)
		return nil, fmt.Errorf("could not start transaction: %w", err)
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO orders (id, user_id, user_name, user_email, user_phone, total, status, cancel_status, cancel_reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9)`,
		o.ID, o.Buyer.UserID, o.Buyer.Name, o.Buyer.Email, o.Buyer.Phone, o.Total, o.Status, o.Cancel.Status, o.CreatedAt,
	)
	if err != nil {
		s.log.Errorf("failed to insert order for %s: %v", buyer.Email, err)
		return nil, fmt.Errorf("could not create order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO order_lines (order_id, product_id, name, duration, quantity, unit_price)
        VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare line statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range o.Lines {
		if _, err = stmt.ExecContext(ctx, o.ID, l.ProductID, l.Name, l.Duration, l.Quantity, l.UnitPrice); err != nil {
			s.log.Errorf("failed to insert order line (product %s) for order %s: %v", l.ProductID, o.ID, err)
			return nil, fmt.Errorf("could not create order line (product %s): %w", l.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		s.log.Errorf("failed to commit transaction for order %s: %v", o.ID, err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Infof("order %s created for %s with %d lines", o.ID, o.Buyer.Email, len(o.Lines))
	return o, nil
}

// Get returns the order with its lines, or orders.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+headerColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanHeader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orders.ErrNotFound
		}
		return nil, fmt.Errorf("could not retrieve order: %w", err)
	}

	lines, err := s.getLines(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[id]
	return o, nil
}

// List returns orders newest first, optionally restricted to one
// buyer email, with lines attached in a second query.
func (s *Store) List(ctx context.Context, limit int, ownerEmail string) ([]orders.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + headerColumns + ` FROM orders`
	args := []any{}
	if ownerEmail != "" {
		query += ` WHERE user_email = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, ownerEmail, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve orders: %w", err)
	}
	defer rows.Close()

	var result []orders.Order
	var ids []string
	for rows.Next() {
		o, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning order: %w", err)
		}
		result = append(result, *o)
		ids = append(ids, o.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(result) == 0 {
		return []orders.Order{}, nil
	}

	linesByOrder, err := s.getLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Lines = linesByOrder[result[i].ID]
	}
	return result, nil
}

func (s *Store) getLines(ctx context.Context, orderIDs []string) (map[string][]orders.Line, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT order_id, product_id, name, duration, quantity, unit_price
        FROM order_lines
        WHERE order_id = ANY($1::text[])
        ORDER BY order_id`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve order lines: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]orders.Line)
	for rows.Next() {
		var (
			orderID string
			l       orders.Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Name, &l.Duration, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("error scanning order line: %w", err)
		}
		byOrder[orderID] = append(byOrder[orderID], l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}
	return byOrder, nil
}

// UpdateStatus sets the status in a single UPDATE, avoiding
// read-modify-write lost updates.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (*orders.Order, error) {
	if !orders.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", orders.ErrValidation, status)
	}

	row := s.db.QueryRowContext(ctx, `
        UPDATE orders SET status = $2 WHERE id = $1
        RETURNING `+headerColumns, id, status)
	return s.finishUpdate(ctx, row, id, nil)
}

// RequestCancellation moves the cancellation track to requested. The
// WHERE clause rejects the write once confirmed; a repeated request
// while still requested overwrites reason and timestamp.
func (s *Store) RequestCancellation(ctx context.Context, id, reason string) (*orders.Order, error) {
	if err := orders.ValidateReason(reason); err != nil {
		return nil, err
	}
	now := s.nowFunc().UTC()

	row := s.db.QueryRowContext(ctx, `
        UPDATE orders
        SET cancel_status = $2, cancel_reason = $3, cancel_requested_at = $4
        WHERE id = $1 AND cancel_status <> $5
        RETURNING `+headerColumns,
		id, orders.CancelRequested, reason, now, orders.CancelConfirmed)
	return s.finishUpdate(ctx, row, id, orders.ErrCancelConfirmed)
}

// ConfirmCancellation moves requested -> confirmed.
func (s *Store) ConfirmCancellation(ctx context.Context, id string) (*orders.Order, error) {
	now := s.nowFunc().UTC()

	row := s.db.QueryRowContext(ctx, `
        UPDATE orders
        SET cancel_status = $2, cancel_confirmed_at = $3
        WHERE id = $1 AND cancel_status = $4
        RETURNING `+headerColumns,
		id, orders.CancelConfirmed, now, orders.CancelRequested)
	return s.finishUpdate(ctx, row, id, orders.ErrCancelNotRequested)
}

// finishUpdate resolves the zero-row case of a conditional UPDATE: the
// order is either missing (ErrNotFound) or in a state the precondition
// rejects (policyErr), probed with a cheap existence check.
func (s *Store) finishUpdate(ctx context.Context, row *sql.Row, id string, policyErr error) (*orders.Order, error) {
	o, err := scanHeader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if probeErr := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); probeErr != nil {
				return nil, fmt.Errorf("could not probe order %s: %w", id, probeErr)
			}
			if !exists || policyErr == nil {
				return nil, orders.ErrNotFound
			}
			return nil, policyErr
		}
		return nil, fmt.Errorf("could not update order: %w", err)
	}

	lines, err := s.getLines(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[id]
	return o, nil
}

// Delete removes the order; lines go with it via ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("could not delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not read rows affected: %w", err)
	}
	if n == 0 {
		return orders.ErrNotFound
	}
	s.log.Infof("order %s deleted", id)
	return nil
}
