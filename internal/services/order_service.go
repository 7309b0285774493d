package services

import (
	"context"

	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
)

// OrderRemote is the slice of the remote store the order flow needs.
type OrderRemote interface {
	IsAuthenticated() bool
	UserID() string
	GetTokenBalance(ctx context.Context) (int, error)
	SpendTokens(ctx context.Context, amount int) (int, error)
	RefundTokens(ctx context.Context, amount int) error
	CreateOrder(ctx context.Context, order *models.PrintOrder) (string, error)
}

// OrderService places sticker print orders. The remote ledger is debited
// before the order record is created; a failed creation refunds the debit.
type OrderService struct {
	remote  OrderRemote
	metrics *observability.BusinessMetrics
}

// NewOrderService creates the service; metrics may be nil
func NewOrderService(remote OrderRemote, metrics *observability.BusinessMetrics) *OrderService {
	return &OrderService{remote: remote, metrics: metrics}
}

// Balance reads the caller's token balance
func (s *OrderService) Balance(ctx context.Context) (*models.TokenBalanceResponse, error) {
	tokens, err := s.remote.GetTokenBalance(ctx)
	if err != nil {
		return nil, err
	}
	return &models.TokenBalanceResponse{
		UserID: s.remote.UserID(),
		Tokens: tokens,
	}, nil
}

// PlaceOrder validates, debits the ledger, and creates the order record.
// The overdraft check lives remotely; an insufficient balance surfaces as
// ErrInsufficientTokens before any order exists.
func (s *OrderService) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error) {
	order, err := models.NewPrintOrder(req.EditIDs, req.Quantity, req.ShippingTo)
	if err != nil {
		return nil, err
	}

	remaining, err := s.remote.SpendTokens(ctx, order.TokenCost)
	if err != nil {
		return nil, err
	}

	remoteID, err := s.remote.CreateOrder(ctx, order)
	if err != nil {
		if refundErr := s.remote.RefundTokens(ctx, order.TokenCost); refundErr != nil {
			// Worst case: tokens gone and no order. Loud log, manual fixup.
			observability.WithContext(ctx).Errorf("order: refund of %d tokens failed after create error: %v (create error: %v)", order.TokenCost, refundErr, err)
		} else {
			remaining += order.TokenCost
		}
		return nil, err
	}

	order.RemoteID = remoteID
	if s.metrics != nil {
		s.metrics.RecordOrder(ctx, s.remote.UserID(), order.Quantity)
	}
	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id": remoteID,
		"quantity": order.Quantity,
		"cost":     order.TokenCost,
	}).Info("print order placed")

	return &models.OrderResponse{Order: *order, Tokens: remaining}, nil
}
