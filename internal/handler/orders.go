package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/service"
)

// OrderHandler serves the JSON order API.
type OrderHandler struct {
	ledger *service.LedgerService
	notify *service.NotificationService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(ledger *service.LedgerService, notify *service.NotificationService) *OrderHandler {
	return &OrderHandler{ledger: ledger, notify: notify}
}

// HandleList returns the user's orders.
// GET /api/orders
// Response: {"orders": [...], "warning": "..."}
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	list, err := h.ledger.ListOrders(r.Context(), user.Username)
	if err != nil {
		writeDomainError(w, r, "list orders", err)
		return
	}

	resp := map[string]any{"orders": toOrderDTOs(list)}
	if list.Err() != nil {
		resp["warning"] = mismatchWarning
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate places an order.
// POST /api/orders
// Request:  {"pickupLocation":"...","dropLocation":"..."}
// Response: {"order": {...}}
func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		PickupLocation string `json:"pickupLocation"`
		DropLocation   string `json:"dropLocation"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	index, err := h.ledger.PlaceOrder(r.Context(), user.Username, req.PickupLocation, req.DropLocation)
	if err != nil {
		writeDomainError(w, r, "place order", err)
		return
	}

	order := domain.Order{
		Pickup: strings.TrimSpace(req.PickupLocation),
		Drop:   strings.TrimSpace(req.DropLocation),
	}
	confirm(r, h.notify, user.Username, order)

	writeJSON(w, http.StatusCreated, map[string]any{
		"order": OrderDTO{Index: index, PickupLocation: order.Pickup, DropLocation: order.Drop},
	})
}

// HandleDelete removes the order at {index}.
// DELETE /api/orders/{index}
// Response: 204 No Content
func (h *OrderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Order not found.")
		return
	}

	if err := h.ledger.DeleteOrder(r.Context(), user.Username, index); err != nil {
		writeDomainError(w, r, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const mismatchWarning = "Some orders could not be shown because your order history is inconsistent."

// confirm sends the order confirmation. The order stays placed when it fails.
func confirm(r *http.Request, notify *service.NotificationService, username string, order domain.Order) {
	err := notify.ConfirmOrder(r.Context(), username, order)
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrNotificationFailed) {
		slog.WarnContext(r.Context(), "order confirmation not delivered", "username", username, "error", err)
		return
	}
	slog.ErrorContext(r.Context(), "confirm order", "username", username, "error", err)
}
