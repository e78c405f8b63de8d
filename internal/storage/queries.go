package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const (
	getRentRoll = `SELECT rent_roll, updated_at FROM manual_data WHERE account_id = $1`

	upsertRentRoll = `INSERT INTO manual_data (account_id, rent_roll, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (account_id) DO UPDATE SET rent_roll = EXCLUDED.rent_roll, updated_at = EXCLUDED.updated_at
RETURNING rent_roll, updated_at`

	listLiabilities = `SELECT slug, loan_amount_usd, interest_rate_pct, monthly_payment_usd, outstanding_balance_usd, term_months, updated_at, updated_by
FROM manual_liability`

	getAsset = `SELECT value_usd, updated_at, updated_by FROM manual_asset WHERE slug = $1`

	upsertAsset = `INSERT INTO manual_asset (slug, value_usd, updated_at, updated_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE SET value_usd = EXCLUDED.value_usd, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`

	listRentRollConstraints = `SELECT conname FROM pg_constraint WHERE conrelid = 'manual_data'::regclass ORDER BY conname`

	dropRentRollFK             = `ALTER TABLE manual_data DROP CONSTRAINT IF EXISTS manual_data_account_id_fkey`
	createRentRollAccountIndex = `CREATE INDEX IF NOT EXISTS idx_manual_data_account_id ON manual_data(account_id)`
	commentRentRollTable       = `COMMENT ON TABLE manual_data IS 'Manual rent-roll per account; FK to accounts is optional and may be enforced externally.'`
)

type RentRollRow struct {
	RentRoll  sql.NullFloat64
	UpdatedAt nullTime
}

func (q *Queries) GetRentRoll(ctx context.Context, accountID string) (RentRollRow, error) {
	var row RentRollRow
	err := q.db.QueryRowContext(ctx, getRentRoll, accountID).Scan(&row.RentRoll, &row.UpdatedAt)
	return row, err
}

type UpsertRentRollParams struct {
	AccountID string
	RentRoll  sql.NullFloat64
	UpdatedAt time.Time
}

func (q *Queries) UpsertRentRoll(ctx context.Context, arg UpsertRentRollParams) (RentRollRow, error) {
	var row RentRollRow
	err := q.db.QueryRowContext(ctx, upsertRentRoll, arg.AccountID, arg.RentRoll, arg.UpdatedAt).
		Scan(&row.RentRoll, &row.UpdatedAt)
	return row, err
}

type FieldRow struct {
	Value     any
	UpdatedAt nullTime
	UpdatedBy sql.NullString
}

// GetFieldColumn projects one column of a domain row. Table and column come
// from the fixed field catalogue, never from request input.
func (q *Queries) GetFieldColumn(ctx context.Context, table, column string, keys []any) (FieldRow, error) {
	where := []string{"account_id = $1"}
	if len(keys) > 1 {
		where = append(where, "unit = $2")
	}
	stmt := fmt.Sprintf("SELECT %s, updated_at, updated_by FROM %s WHERE %s", column, table, strings.Join(where, " AND "))

	var row FieldRow
	err := q.db.QueryRowContext(ctx, stmt, keys...).Scan(&row.Value, &row.UpdatedAt, &row.UpdatedBy)
	return row, err
}

type UpsertFieldParams struct {
	Table     string
	Column    string
	KeyCols   []string
	Keys      []any
	Value     any
	UpdatedAt time.Time
	UpdatedBy sql.NullString
}

func (q *Queries) UpsertFieldColumn(ctx context.Context, arg UpsertFieldParams) (FieldRow, error) {
	cols := append(append([]string{}, arg.KeyCols...), arg.Column, "updated_at", "updated_by")
	args := append(append([]any{}, arg.Keys...), arg.Value, arg.UpdatedAt, arg.UpdatedBy)
	stmt := fmt.Sprintf(`INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
RETURNING %s, updated_at, updated_by`,
		arg.Table, strings.Join(cols, ", "), placeholders(1, len(cols)),
		strings.Join(arg.KeyCols, ", "), arg.Column, arg.Column, arg.Column)

	var row FieldRow
	err := q.db.QueryRowContext(ctx, stmt, args...).Scan(&row.Value, &row.UpdatedAt, &row.UpdatedBy)
	return row, err
}

type LiabilityRow struct {
	Slug                  string
	LoanAmountUSD         sql.NullFloat64
	InterestRatePct       sql.NullFloat64
	MonthlyPaymentUSD     sql.NullFloat64
	OutstandingBalanceUSD sql.NullFloat64
	TermMonths            sql.NullInt64
	UpdatedAt             nullTime
	UpdatedBy             sql.NullString
}

func (q *Queries) ListLiabilities(ctx context.Context) ([]LiabilityRow, error) {
	rows, err := q.db.QueryContext(ctx, listLiabilities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LiabilityRow
	for rows.Next() {
		var i LiabilityRow
		if err := rows.Scan(
			&i.Slug,
			&i.LoanAmountUSD,
			&i.InterestRatePct,
			&i.MonthlyPaymentUSD,
			&i.OutstandingBalanceUSD,
			&i.TermMonths,
			&i.UpdatedAt,
			&i.UpdatedBy,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type UpsertLiabilityParams struct {
	Slug      string
	Columns   []string
	Values    []any
	UpdatedAt time.Time
	UpdatedBy sql.NullString
}

// UpsertLiability writes only the given columns; the rest keep their value.
func (q *Queries) UpsertLiability(ctx context.Context, arg UpsertLiabilityParams) error {
	cols := append([]string{"slug"}, arg.Columns...)
	cols = append(cols, "updated_at", "updated_by")
	args := append([]any{arg.Slug}, arg.Values...)
	args = append(args, arg.UpdatedAt, arg.UpdatedBy)

	sets := make([]string, 0, len(arg.Columns)+2)
	for _, c := range arg.Columns {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "updated_at = EXCLUDED.updated_at", "updated_by = EXCLUDED.updated_by")

	stmt := fmt.Sprintf(`INSERT INTO manual_liability (%s)
VALUES (%s)
ON CONFLICT (slug) DO UPDATE SET %s`,
		strings.Join(cols, ", "), placeholders(1, len(cols)), strings.Join(sets, ", "))

	_, err := q.db.ExecContext(ctx, stmt, args...)
	return err
}

type AssetRow struct {
	ValueUSD  sql.NullFloat64
	UpdatedAt nullTime
	UpdatedBy sql.NullString
}

func (q *Queries) GetAsset(ctx context.Context, slug string) (AssetRow, error) {
	var row AssetRow
	err := q.db.QueryRowContext(ctx, getAsset, slug).Scan(&row.ValueUSD, &row.UpdatedAt, &row.UpdatedBy)
	return row, err
}

type UpsertAssetParams struct {
	Slug      string
	ValueUSD  sql.NullFloat64
	UpdatedAt time.Time
	UpdatedBy sql.NullString
}

func (q *Queries) UpsertAsset(ctx context.Context, arg UpsertAssetParams) error {
	_, err := q.db.ExecContext(ctx, upsertAsset, arg.Slug, arg.ValueUSD, arg.UpdatedAt, arg.UpdatedBy)
	return err
}

func (q *Queries) ListRentRollConstraints(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listRentRollConstraints)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	return items, rows.Err()
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}
