package repository

import (
	"context"
	"errors"
	"time"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("transaction reference already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a downstream notification written in the same database
// transaction as the state change that caused it, so it is published at
// most once per confirmed payment.
type OutboxEvent struct {
	ID          int64
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type OrderRepository interface {
	// CreateOrder persists the order together with its pending gateway
	// transaction in one database transaction.
	CreateOrder(ctx context.Context, order *domain.Order, txn *domain.Transaction) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	GetSnapshotByReference(ctx context.Context, reference string) (*domain.OrderStatusSnapshot, error)

	// MarkPaid applies the paid transition for a reference. It is a
	// conditional update guarded by the current pending status: the
	// second of two racing confirmations observes applied=false and no
	// side effects fire twice.
	MarkPaid(ctx context.Context, reference string, paidAt time.Time, channel string) (applied bool, err error)
	// MarkFailed records a provider-reported failed or abandoned attempt.
	// Only payment_status moves; fulfillment status is untouched.
	MarkFailed(ctx context.Context, reference string, status domain.TransactionStatus) (applied bool, err error)

	UpdateOrderStatus(ctx context.Context, orderNumber string, status domain.OrderStatus) error

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error

	Close() error
	RunMigrations(cred *Credentials) error
}
