package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

const orderColumns = `
	id, customer_id, status, total_minor,
	delivery_address, delivery_city, delivery_phone, note,
	version, created_at, updated_at,
	preparing_at, ready_at, delivered_at, cancelled_at
`

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, status, total_minor,
			delivery_address, delivery_city, delivery_phone, note,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID, order.CustomerID, string(order.Status), order.TotalMinor,
		order.DeliveryAddress, order.DeliveryCity, order.DeliveryPhone, order.Note,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	// position фиксирует порядок позиций в заказе: created_at у всех позиций
	// одинаковый, а id случайный, по ним порядок не восстановить.
	for i, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, meal_id, provider_id, name, qty, price_minor, position, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			line.ID, order.ID, line.MealID, line.ProviderID, line.Name,
			line.Qty, line.PriceMinor, i, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByCustomer(customerID string, filter domain.OrderFilter) ([]domain.Order, int, error) {
	return r.list(`customer_id = $1`, customerID, filter)
}

func (r *orderRepository) ListByProvider(providerID string, filter domain.OrderFilter) ([]domain.Order, int, error) {
	return r.list(`EXISTS (
		SELECT 1 FROM order_lines ol
		WHERE ol.order_id = orders.id AND ol.provider_id = $1
	)`, providerID, filter)
}

func (r *orderRepository) list(where, arg string, filter domain.OrderFilter) ([]domain.Order, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	args := []any{arg}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(filter.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page, offset := filter.Page.Normalize()
	query := fmt.Sprintf(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, page.Limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		lines, err := r.loadLines(ctx, order.ID)
		if err != nil {
			return nil, 0, err
		}
		order.Lines = lines
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, total, nil
}

// SaveStatus применяет переход статуса с optimistic locking.
// Инкремент счётчика ресторана выполняется в той же транзакции, что и запись
// статуса: счётчик и статус не могут разъехаться.
func (r *orderRepository) SaveStatus(order domain.Order, creditProviderID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    updated_at = $2,
		    preparing_at = $3,
		    ready_at = $4,
		    delivered_at = $5,
		    cancelled_at = $6,
		    version = version + 1
		WHERE id = $7
		  AND version = $8
	`,
		string(order.Status),
		order.UpdatedAt,
		order.PreparingAt,
		order.ReadyAt,
		order.DeliveredAt,
		order.CancelledAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExistsTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	if creditProviderID != "" {
		res, err = tx.ExecContext(ctx, `
			UPDATE provider_profiles
			SET total_orders = total_orders + 1
			WHERE id = $1
		`, creditProviderID)
		if err != nil {
			return fmt.Errorf("credit provider orders: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected for provider credit: %w", err)
		}
		if affected == 0 {
			err = domain.ErrProviderNotFound
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order status: %w", err)
	}

	return nil
}

func (r *orderRepository) HasDeliveredMeal(customerID, mealID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_lines ol ON ol.order_id = o.id
			WHERE o.customer_id = $1
			  AND o.status = $2
			  AND ol.meal_id = $3
		)
	`, customerID, string(domain.OrderStatusDelivered), mealID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check delivered meal: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		status      string
		preparingAt sql.NullTime
		readyAt     sql.NullTime
		deliveredAt sql.NullTime
		cancelledAt sql.NullTime
	)

	if err := row.Scan(
		&order.ID, &order.CustomerID, &status, &order.TotalMinor,
		&order.DeliveryAddress, &order.DeliveryCity, &order.DeliveryPhone, &order.Note,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
		&preparingAt, &readyAt, &deliveredAt, &cancelledAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	order.PreparingAt = nullTimePtr(preparingAt)
	order.ReadyAt = nullTimePtr(readyAt)
	order.DeliveredAt = nullTimePtr(deliveredAt)
	order.CancelledAt = nullTimePtr(cancelledAt)

	return order, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, meal_id, provider_id, name, qty, price_minor, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.MealID, &line.ProviderID, &line.Name,
			&line.Qty, &line.PriceMinor, &line.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
