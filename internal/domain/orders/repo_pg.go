package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/db"
)

// Postgres table names.
const (
	TableUnbilled = "unbilled_orders"
	TableBilled   = "billed_orders"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Order Repository ===========

type orderRepoPG struct {
	pool  *pgxpool.Pool
	table string
	coll  Collection
}

// NewRepoPG returns the order collection stored in table. Serial numbers come
// from the serial_counters row named coll.Name.
func NewRepoPG(pool *pgxpool.Pool, table string, coll Collection) Repository {
	return &orderRepoPG{pool: pool, table: table, coll: coll}
}

func (r *orderRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const orderCols = `id, serial_no, name, age, gender, phone, referred_by,
	category, subcategory, payment_mode, total_amount, discount, final_payment,
	remarks, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.SerialNo, &o.Name, &o.Age, &o.Gender, &o.Phone, &o.ReferredBy,
		&o.Category, &o.Subcategory, &o.PaymentMode, &o.TotalAmount, &o.Discount, &o.FinalPayment,
		&o.Remarks, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// whereClause renders q as a SQL condition and its arguments.
func whereClause(q Query) (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Filter.Search != "" {
		p := arg(likePattern(q.Filter.Search))
		text := []string{"name ILIKE " + p, "serial_no ILIKE " + p}
		if len(q.DoctorIDs) > 0 {
			text = append(text, "referred_by = ANY("+arg(q.DoctorIDs)+")")
		}
		conds = append(conds, "("+strings.Join(text, " OR ")+")")
	}
	if q.Filter.From != nil {
		conds = append(conds, "created_at >= "+arg(*q.Filter.From))
	}
	if q.Filter.To != nil {
		conds = append(conds, "created_at <= "+arg(*q.Filter.To))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *orderRepoPG) List(ctx context.Context, q Query) ([]*Order, int, error) {
	where, args := whereClause(q)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+r.table+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.table, err)
	}

	sql := `SELECT ` + orderCols + ` FROM ` + r.table + where + ` ORDER BY created_at DESC, serial_no DESC`
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.table, err)
	}
	defer rows.Close()

	out := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", r.table, err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *orderRepoPG) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM `+r.table+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", r.table, id, err)
	}
	return o, nil
}

func (r *orderRepoPG) nextSerial(ctx context.Context) (string, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO serial_counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = serial_counters.value + 1
		RETURNING value`, r.coll.Name).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next %s serial: %w", r.coll.Name, err)
	}
	return r.coll.FormatSerial(n), nil
}

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	serial, err := r.nextSerial(ctx)
	if err != nil {
		return err
	}
	o.ID = uuid.NewString()
	o.SerialNo = serial
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO `+r.table+` (id, serial_no, name, age, gender, phone, referred_by,
			category, subcategory, payment_mode, total_amount, discount, final_payment, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		o.ID, o.SerialNo, o.Name, o.Age, o.Gender, o.Phone, o.ReferredBy,
		o.Category, o.Subcategory, o.PaymentMode, o.TotalAmount, o.Discount, o.FinalPayment, o.Remarks,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

func (r *orderRepoPG) Update(ctx context.Context, o *Order) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE `+r.table+` SET name = $2, age = $3, gender = $4, phone = $5, referred_by = $6,
			category = $7, subcategory = $8, payment_mode = $9, total_amount = $10,
			discount = $11, final_payment = $12, remarks = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING serial_no, created_at, updated_at`,
		o.ID, o.Name, o.Age, o.Gender, o.Phone, o.ReferredBy,
		o.Category, o.Subcategory, o.PaymentMode, o.TotalAmount,
		o.Discount, o.FinalPayment, o.Remarks,
	).Scan(&o.SerialNo, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s %s: %w", r.table, o.ID, err)
	}
	return nil
}

func (r *orderRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", r.table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepoPG) Restore(ctx context.Context, o *Order) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO `+r.table+` (`+orderCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.SerialNo, o.Name, o.Age, o.Gender, o.Phone, o.ReferredBy,
		o.Category, o.Subcategory, o.PaymentMode, o.TotalAmount, o.Discount, o.FinalPayment,
		o.Remarks, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("restore %s %s: %w", r.table, o.ID, err)
	}
	return nil
}

// =========== Migration Journal Repository ===========

type journalRepoPG struct{ pool *pgxpool.Pool }

func NewJournalRepoPG(pool *pgxpool.Pool) JournalRepository { return &journalRepoPG{pool: pool} }

func (r *journalRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const migrationCols = `id, unbilled_id, unbilled_serial_no, billed_id, billed_serial_no,
	status, snapshot, payload, error, attempts, created_at, updated_at`

func scanMigration(row pgx.Row) (*Migration, error) {
	var m Migration
	var snapshot, payload []byte
	err := row.Scan(&m.ID, &m.UnbilledID, &m.UnbilledSerialNo, &m.BilledID, &m.BilledSerialNo,
		&m.Status, &snapshot, &payload, &m.Error, &m.Attempts, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &m.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &m.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &m, nil
}

func (r *journalRepoPG) Create(ctx context.Context, m *Migration) error {
	snapshot, err := json.Marshal(m.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO order_migrations (id, unbilled_id, unbilled_serial_no, billed_id, billed_serial_no,
			status, snapshot, payload, error, attempts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		m.ID, m.UnbilledID, m.UnbilledSerialNo, m.BilledID, m.BilledSerialNo,
		m.Status, snapshot, payload, m.Error, m.Attempts,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	return nil
}

func (r *journalRepoPG) Update(ctx context.Context, m *Migration) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE order_migrations SET billed_id = $2, billed_serial_no = $3, status = $4,
			error = $5, attempts = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.BilledID, m.BilledSerialNo, m.Status, m.Error, m.Attempts,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMigrationNotFound
	}
	if err != nil {
		return fmt.Errorf("update migration %s: %w", m.ID, err)
	}
	return nil
}

func (r *journalRepoPG) Transition(ctx context.Context, id, from, to string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE order_migrations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("transition migration %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *journalRepoPG) Get(ctx context.Context, id string) (*Migration, error) {
	m, err := scanMigration(r.conn(ctx).QueryRow(ctx, `SELECT `+migrationCols+` FROM order_migrations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMigrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get migration %s: %w", id, err)
	}
	return m, nil
}

func (r *journalRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Migration, int, error) {
	where := ""
	var args []interface{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM order_migrations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count migrations: %w", err)
	}

	sql := `SELECT ` + migrationCols + ` FROM order_migrations` + where + ` ORDER BY created_at`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	out := []*Migration{}
	for rows.Next() {
		m, err := scanMigration(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}
