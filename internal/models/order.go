package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrintOrder is a sticker print order placed against the remote store.
// Pricing is in tokens; the remote ledger is authoritative for the debit.
type PrintOrder struct {
	ID         string    `json:"id"`
	RemoteID   string    `json:"remoteId,omitempty"`
	EditIDs    []string  `json:"editIds"`
	Quantity   int       `json:"quantity"`
	TokenCost  int       `json:"tokenCost"`
	Status     string    `json:"status"`
	ShippingTo string    `json:"shippingTo"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TokensPerSheet is the ledger cost of one printed sticker sheet.
const TokensPerSheet = 5

// NewPrintOrder validates and creates a pending order.
func NewPrintOrder(editIDs []string, quantity int, shippingTo string) (*PrintOrder, error) {
	if len(editIDs) == 0 {
		return nil, ErrOrderNoEdits
	}
	if quantity <= 0 {
		return nil, ErrOrderBadQuantity
	}
	if strings.TrimSpace(shippingTo) == "" {
		return nil, ErrOrderNoShipping
	}

	return &PrintOrder{
		ID:         uuid.New().String(),
		EditIDs:    editIDs,
		Quantity:   quantity,
		TokenCost:  TokensPerSheet * quantity,
		Status:     "pending",
		ShippingTo: shippingTo,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

var (
	ErrOrderNoEdits     = PhotoError{"order must reference at least one edit"}
	ErrOrderBadQuantity = PhotoError{"order quantity must be positive"}
	ErrOrderNoShipping  = PhotoError{"order shipping address cannot be empty"}
)
