package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/printapic/syncd/internal/models"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/services"
)

// OrderHandler handles token and print order endpoints
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Balance reports the remote token balance
// @Summary Token balance
// @Description Returns the caller's token balance from the remote ledger.
// @Tags orders
// @Produce json
// @Success 200 {object} models.TokenBalanceResponse "Current balance"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 409 {object} models.ErrorResponse "No remote session"
// @Security ApiKeyAuth
// @Router /api/tokens [get]
func (h *OrderHandler) Balance(w http.ResponseWriter, r *http.Request) {
	resp, err := h.orders.Balance(r.Context())
	if err != nil {
		if err == models.ErrNotAuthenticated {
			h.respondError(w, http.StatusConflict, "No remote session.")
			return
		}
		observability.WithContext(r.Context()).Errorf("token balance: %v", err)
		h.respondError(w, http.StatusBadGateway, "Failed to read token balance.")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Create places a print order
// @Summary Place a print order
// @Description Debits the token ledger and creates a sticker print order for the given edits.
// @Tags orders
// @Accept json
// @Produce json
// @Param request body models.OrderRequest true "Order details"
// @Success 201 {object} models.OrderResponse "Order placed"
// @Failure 400 {object} models.ErrorResponse "Invalid order"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 402 {object} models.ErrorResponse "Insufficient tokens"
// @Failure 409 {object} models.ErrorResponse "No remote session"
// @Security ApiKeyAuth
// @Router /api/orders [post]
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	resp, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		switch err {
		case models.ErrOrderNoEdits, models.ErrOrderBadQuantity, models.ErrOrderNoShipping:
			h.respondError(w, http.StatusBadRequest, err.Error())
		case models.ErrInsufficientTokens:
			h.respondError(w, http.StatusPaymentRequired, err.Error())
		case models.ErrNotAuthenticated:
			h.respondError(w, http.StatusConflict, "No remote session.")
		default:
			observability.WithContext(r.Context()).Errorf("place order: %v", err)
			h.respondError(w, http.StatusBadGateway, "Failed to place order.")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *OrderHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
