package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-shop-services/internal/logger"
	"github.com/ariefcatur/go-shop-services/internal/orders"
	"github.com/ariefcatur/go-shop-services/internal/products"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Unknown errors are logged
// and reported without their message.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var stock *orders.StockError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, orders.ErrInvalidOrder):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_request"})
	case errors.Is(err, products.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, orders.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "product_not_found"})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "insufficient_stock",
			Details: map[string]any{
				"productId": stock.ProductID,
				"requested": stock.Requested,
				"available": stock.Available,
			},
		})
	case errors.Is(err, orders.ErrProductServiceUnavailable):
		logger.FromContext(r.Context(), log).Warn("product service unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: orders.ErrProductServiceUnavailable.Error(), Code: "product_service_unavailable"})
	default:
		logger.FromContext(r.Context(), log).Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal_error"})
	}
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid id %q", raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid json: %v", err)
	}
	return nil
}
