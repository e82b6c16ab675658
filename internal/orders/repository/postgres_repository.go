package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	fmt.Println("Connected to postgres!")
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, txn *domain.Transaction) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `INSERT INTO orders
	        (id, order_number, session_id, status, payment_status, total_amount, currency,
	         items, shipping_address, customer_name, email, phone, notes, created_at, updated_at)
	        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, insertErr := tx.ExecContext(ctx, orderQuery,
		order.ID,
		order.OrderNumber,
		order.SessionID,
		order.Status,
		order.PaymentStatus,
		order.TotalAmount,
		order.Currency,
		itemsJSON,
		addressJSON,
		order.CustomerName,
		order.Email,
		order.Phone,
		order.Notes)
	if insertErr != nil {
		return fmt.Errorf("insert order: %w", insertErr)
	}

	txnQuery := `INSERT INTO transactions (reference, order_id, amount, status, channel, created_at, updated_at)
	        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`

	_, insertErr = tx.ExecContext(ctx, txnQuery,
		txn.Reference,
		txn.OrderID,
		txn.Amount,
		txn.Status,
		txn.Channel)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", insertErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	query := `SELECT id, order_number, session_id, status, payment_status, total_amount, currency,
	                 items, shipping_address, customer_name, email, phone, notes, created_at, updated_at, paid_at
	          FROM orders WHERE order_number = $1`

	var (
		order       domain.Order
		itemsJSON   []byte
		addressJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, orderNumber).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.SessionID,
		&order.Status,
		&order.PaymentStatus,
		&order.TotalAmount,
		&order.Currency,
		&itemsJSON,
		&addressJSON,
		&order.CustomerName,
		&order.Email,
		&order.Phone,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.PaidAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by number: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}

	return &order, nil
}

func (r *Repository) GetTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT reference, order_id, amount, status, channel, paid_at, created_at, updated_at
	          FROM transactions WHERE reference = $1`

	var txn domain.Transaction
	err := r.db.QueryRowContext(ctx, query, reference).Scan(
		&txn.Reference,
		&txn.OrderID,
		&txn.Amount,
		&txn.Status,
		&txn.Channel,
		&txn.PaidAt,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction by reference: %w", err)
	}

	return &txn, nil
}

func (r *Repository) GetSnapshotByReference(ctx context.Context, reference string) (*domain.OrderStatusSnapshot, error) {
	query := `SELECT o.order_number, o.id, o.status, o.payment_status, t.amount, t.reference, t.paid_at
	          FROM transactions t JOIN orders o ON o.id = t.order_id
	          WHERE t.reference = $1`

	var snap domain.OrderStatusSnapshot
	err := r.db.QueryRowContext(ctx, query, reference).Scan(
		&snap.OrderNumber,
		&snap.OrderID,
		&snap.Status,
		&snap.PaymentStatus,
		&snap.Amount,
		&snap.Reference,
		&snap.PaidAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot by reference: %w", err)
	}

	return &snap, nil
}

func (r *Repository) MarkPaid(ctx context.Context, reference string, paidAt time.Time, channel string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Conditional update keyed by reference: whichever of two concurrent
	// confirmations runs second affects zero rows and applies nothing.
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $2, channel = $3, paid_at = $4, updated_at = NOW()
	         WHERE reference = $1 AND status = $5`,
		reference, domain.TransactionStatusSuccess, channel, paidAt, domain.TransactionStatusPending)
	if err != nil {
		return false, fmt.Errorf("update transaction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	var (
		orderNumber string
		amount      int64
		currency    string
	)
	err = tx.QueryRowContext(ctx,
		`UPDATE orders SET payment_status = $2, paid_at = $3, updated_at = NOW()
	         WHERE id = (SELECT order_id FROM transactions WHERE reference = $1)
	         RETURNING order_number, total_amount, currency`,
		reference, domain.PaymentStatusPaid, paidAt).Scan(&orderNumber, &amount, &currency)
	if err != nil {
		return false, fmt.Errorf("update order payment status: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_number": orderNumber,
		"reference":    reference,
		"amount":       amount,
		"currency":     currency,
		"channel":      channel,
		"paid_at":      paidAt,
	})
	if err != nil {
		return false, fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (event_type, payload, created_at) VALUES ($1, $2, NOW())`,
		"payment.confirmed", payload)
	if err != nil {
		return false, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mark paid: %w", err)
	}
	return true, nil
}

func (r *Repository) MarkFailed(ctx context.Context, reference string, status domain.TransactionStatus) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $2, updated_at = NOW()
	         WHERE reference = $1 AND status = $3`,
		reference, status, domain.TransactionStatusPending)
	if err != nil {
		return false, fmt.Errorf("update transaction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	// The order stays in its current fulfillment status; only the
	// payment outcome is recorded so the payment can be retried.
	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = NOW()
	         WHERE id = (SELECT order_id FROM transactions WHERE reference = $1)`,
		reference, domain.PaymentStatusFailed)
	if err != nil {
		return false, fmt.Errorf("update order payment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mark failed: %w", err)
	}
	return true, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, orderNumber string, status domain.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid order status %q", status)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE order_number = $1`,
		orderNumber, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL
	          ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event as processed: %w", err)
	}
	return nil
}
