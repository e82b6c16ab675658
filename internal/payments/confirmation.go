// Package payments reconciles gateway references into final order and
// payment status. The verify endpoint and the provider webhook both land
// on the same transition function, which applies terminal states
// idempotently.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
	"github.com/INNOCENT-010/storefront-checkout/internal/gateway"
	"github.com/INNOCENT-010/storefront-checkout/internal/orders/repository"
)

// ErrReferenceNotFound means the reference was never issued for any
// order here. Fatal for that confirmation flow.
var ErrReferenceNotFound = errors.New("payment reference not found")

// Verifier re-checks a reference against the provider.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error)
}

// ConfirmationStore is the slice of the order repository confirmation
// needs: lookups plus the two conditional transitions.
type ConfirmationStore interface {
	GetTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	GetSnapshotByReference(ctx context.Context, reference string) (*domain.OrderStatusSnapshot, error)
	MarkPaid(ctx context.Context, reference string, paidAt time.Time, channel string) (bool, error)
	MarkFailed(ctx context.Context, reference string, status domain.TransactionStatus) (bool, error)
}

type ConfirmationService struct {
	store ConfirmationStore
	gw    Verifier
}

func NewConfirmationService(store ConfirmationStore, gw Verifier) *ConfirmationService {
	return &ConfirmationService{store: store, gw: gw}
}

// Confirm resolves a reference after the shopper returns from the
// gateway. An already-resolved reference short-circuits to the stored
// snapshot without touching the provider; an unresolved one is verified
// and the reported status applied.
func (s *ConfirmationService) Confirm(ctx context.Context, reference string) (*domain.OrderStatusSnapshot, error) {
	txn, err := s.store.GetTransactionByReference(ctx, reference)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, ErrReferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup reference: %w", err)
	}

	if txn.Status.IsTerminal() {
		return s.store.GetSnapshotByReference(ctx, reference)
	}

	result, err := s.gw.Verify(ctx, reference)
	if err != nil {
		// Transient from the caller's point of view: the reference stays
		// pending and can be re-checked.
		return nil, err
	}

	return s.apply(ctx, reference, result.Status, result.PaidAt, result.Channel)
}

// Event is a provider-pushed notification, already signature-checked by
// the transport layer.
type Event struct {
	Type      string
	Reference string
	Status    domain.TransactionStatus
	PaidAt    *time.Time
	Channel   string
}

// ConfirmFromEvent applies a webhook notification. No provider call is
// made; the event carries the status.
func (s *ConfirmationService) ConfirmFromEvent(ctx context.Context, ev Event) (*domain.OrderStatusSnapshot, error) {
	_, err := s.store.GetTransactionByReference(ctx, ev.Reference)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, ErrReferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup reference: %w", err)
	}

	return s.apply(ctx, ev.Reference, ev.Status, ev.PaidAt, ev.Channel)
}

// apply is the single idempotent transition both confirmation paths
// converge on. The repository's conditional update decides the race;
// losing it is not an error, the existing snapshot is simply returned.
func (s *ConfirmationService) apply(ctx context.Context, reference string, status domain.TransactionStatus, paidAt *time.Time, channel string) (*domain.OrderStatusSnapshot, error) {
	switch status {
	case domain.TransactionStatusSuccess:
		when := time.Now()
		if paidAt != nil {
			when = *paidAt
		}
		applied, err := s.store.MarkPaid(ctx, reference, when, channel)
		if err != nil {
			return nil, fmt.Errorf("mark paid: %w", err)
		}
		if !applied {
			log.Printf("reference %s already resolved, confirmation is a no-op", reference)
		}
	case domain.TransactionStatusFailed, domain.TransactionStatusAbandoned:
		applied, err := s.store.MarkFailed(ctx, reference, status)
		if err != nil {
			return nil, fmt.Errorf("mark failed: %w", err)
		}
		if !applied {
			log.Printf("reference %s already resolved, confirmation is a no-op", reference)
		}
	default:
		// Still pending on the provider side; nothing to apply.
	}

	return s.store.GetSnapshotByReference(ctx, reference)
}
