package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/roboshop-devops-v1/cart/internal/catalogue"
	"github.com/roboshop-devops-v1/cart/internal/domain"
	"github.com/roboshop-devops-v1/cart/internal/repository"
	"github.com/roboshop-devops-v1/cart/internal/service"
)

type CartService interface {
	GetCart(ctx context.Context, cartID string) (domain.Cart, error)
	AddItem(ctx context.Context, cartID, sku string, qty int) (domain.Cart, error)
	UpdateItem(ctx context.Context, cartID, sku string, qty int) (domain.Cart, error)
	DeleteCart(ctx context.Context, cartID string) error
	RenameCart(ctx context.Context, fromID, toID string) (domain.Cart, error)
	Health(ctx context.Context) service.Health
}

type CartHandler struct {
	service  CartService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCartHandler(svc CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service:  svc,
		validate: validator.New(),
		logger:   logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type itemParams struct {
	CartID string `validate:"required,max=256"`
	SKU    string `validate:"required,max=128"`
	Qty    int    `validate:"gt=0,lte=100000"`
}

type renameParams struct {
	From string `validate:"required,max=256"`
	To   string `validate:"required,max=256,nefield=From"`
}

func (h *CartHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Health(r.Context()))
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "id")
	if err := h.validate.Var(cartID, "required,max=256"); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "cart id is required")
		return
	}

	cart, err := h.service.GetCart(r.Context(), cartID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, repository.ToDTO(cart))
}

func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "id")
	if err := h.validate.Var(cartID, "required,max=256"); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "cart id is required")
		return
	}

	if err := h.service.DeleteCart(r.Context(), cartID); err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseItemParams(w, r)
	if !ok {
		return
	}

	cart, err := h.service.AddItem(r.Context(), params.CartID, params.SKU, params.Qty)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, repository.ToDTO(cart))
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseItemParams(w, r)
	if !ok {
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), params.CartID, params.SKU, params.Qty)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, repository.ToDTO(cart))
}

func (h *CartHandler) RenameCart(w http.ResponseWriter, r *http.Request) {
	params := renameParams{
		From: chi.URLParam(r, "from"),
		To:   chi.URLParam(r, "to"),
	}
	if err := h.validate.Struct(params); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "from and to must be distinct cart ids")
		return
	}

	cart, err := h.service.RenameCart(r.Context(), params.From, params.To)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, repository.ToDTO(cart))
}

// parseItemParams turns the {id}/{sku}/{qty} segments into validated
// values. A quantity outside 1..100000 is rejected here.
func (h *CartHandler) parseItemParams(w http.ResponseWriter, r *http.Request) (itemParams, bool) {
	qty, err := strconv.Atoi(chi.URLParam(r, "qty"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be an integer")
		return itemParams{}, false
	}

	params := itemParams{
		CartID: chi.URLParam(r, "id"),
		SKU:    chi.URLParam(r, "sku"),
		Qty:    qty,
	}
	if err := h.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "Qty" {
			respondError(w, http.StatusBadRequest, "invalid_quantity", domain.ErrInvalidQuantity.Error())
			return itemParams{}, false
		}
		respondError(w, http.StatusBadRequest, "invalid_argument", "cart id and sku are required")
		return itemParams{}, false
	}

	return params, true
}

func (h *CartHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var httpStatus int
	var code string

	switch {
	case errors.Is(err, domain.ErrCartNotFound):
		httpStatus, code = http.StatusNotFound, "cart_not_found"
	case errors.Is(err, domain.ErrItemNotFound):
		httpStatus, code = http.StatusNotFound, "item_not_found"
	case errors.Is(err, domain.ErrProductNotFound):
		httpStatus, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, domain.ErrOutOfStock):
		httpStatus, code = http.StatusNotFound, "out_of_stock"
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpStatus, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrStorage):
		httpStatus, code = http.StatusServiceUnavailable, "storage_error"
	case errors.Is(err, catalogue.ErrUnavailable):
		httpStatus, code = http.StatusBadGateway, "catalogue_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		httpStatus, code = http.StatusInternalServerError, "internal_error"
	}

	if httpStatus >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, httpStatus, code, http.StatusText(httpStatus))
		return
	}

	respondError(w, httpStatus, code, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
