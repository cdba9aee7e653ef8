package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Gridflow/internal/domain"
)

// Горизонт хранения заказов по умолчанию: 24 часа.
const DefaultRetention = 24 * time.Hour

// OrderRepo — репозиторий для работы с ingested заказами.
//
// Заказы принимаются ingestion API батчами и хранятся с горизонтом
// expires_at; устаревшие записи не попадают в выборки producer'а.
type OrderRepo struct {
	pool *pgxpool.Pool
}

// NewOrderRepo создаёт новый OrderRepo.
func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// CreateBatch сохраняет батч заказов одной транзакцией.
// Каждому заказу проставляются created_at и expires_at = now + retention.
func (r *OrderRepo) CreateBatch(ctx context.Context, orders []domain.Order, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultRetention
	}

	now := time.Now()
	expiresAt := now.Add(retention)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (record_id, status, power, price, attrs, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id) DO UPDATE
		SET status = EXCLUDED.status, power = EXCLUDED.power, price = EXCLUDED.price,
		    attrs = EXCLUDED.attrs, expires_at = EXCLUDED.expires_at
	`
	for i := range orders {
		o := &orders[i]

		attrsJSON, err := json.Marshal(o.Attrs)
		if err != nil {
			return fmt.Errorf("marshal attrs for %s: %w", o.RecordID, err)
		}

		_, err = tx.Exec(ctx, query,
			o.RecordID,
			nullString(o.Status),
			o.Power,
			o.Price,
			attrsJSON,
			now,
			expiresAt,
		)
		if err != nil {
			return fmt.Errorf("insert order %s: %w", o.RecordID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListActive возвращает неустаревшие заказы в порядке приёма.
func (r *OrderRepo) ListActive(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	query := `
		SELECT record_id, status, power, price, attrs, created_at, expires_at
		FROM orders
		WHERE expires_at > $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// GetByRecordID возвращает заказ по record_id.
func (r *OrderRepo) GetByRecordID(ctx context.Context, recordID string) (*domain.Order, error) {
	query := `
		SELECT record_id, status, power, price, attrs, created_at, expires_at
		FROM orders
		WHERE record_id = $1
	`
	row := r.pool.QueryRow(ctx, query, recordID)
	order, err := scanOrderRow(row)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// DeleteExpired удаляет устаревшие записи. Возвращает число удалённых строк.
func (r *OrderRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired orders: %w", err)
	}
	return result.RowsAffected(), nil
}

// scanOrder сканирует заказ из rows.
func scanOrder(rows pgx.Rows) (*domain.Order, error) {
	return scanOrderFields(rows.Scan)
}

// scanOrderRow сканирует заказ из одиночной строки.
func scanOrderRow(row pgx.Row) (*domain.Order, error) {
	order, err := scanOrderFields(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return order, err
}

// scanOrderFields — общая логика сканирования полей заказа.
func scanOrderFields(scan func(dest ...any) error) (*domain.Order, error) {
	var order domain.Order
	var status *string
	var attrsJSON []byte

	err := scan(
		&order.RecordID,
		&status,
		&order.Power,
		&order.Price,
		&attrsJSON,
		&order.CreatedAt,
		&order.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if status != nil {
		order.Status = *status
	}
	if attrsJSON != nil {
		if err := json.Unmarshal(attrsJSON, &order.Attrs); err != nil {
			return nil, fmt.Errorf("unmarshal attrs: %w", err)
		}
	}

	return &order, nil
}
