// Package devapi is a local stand-in for the marketplace cart API so the
// storefront client can be developed and exercised without the real
// backend. Carts live in memory, scoped per bearer token.
package devapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront-client/internal/domain"
)

type contextKey string

const tokenContextKey contextKey = "devapi.token"

// Handler holds dependencies for the stub API handlers.
type Handler struct {
	validate *validator.Validate
	logger   *zap.Logger

	mu     sync.Mutex
	carts  map[string][]domain.CartLine // bearer token -> cart lines
	nextID int64
}

// NewHandler creates a Handler with an empty cart store.
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		validate: validator.New(),
		logger:   logger,
		carts:    make(map[string][]domain.CartLine),
		nextID:   100,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// --- Cart Handlers ---

// AddLineInput defines the expected input for adding a cart line.
type AddLineInput struct {
	ProductID     int64           `json:"product_id" validate:"required,gt=0"`
	VariantID     *int64          `json:"variant_id" validate:"omitempty,gt=0"`
	Quantity      int             `json:"quantity" validate:"required,gte=1"`
	ProductName   string          `json:"product_name" validate:"required,max=255"`
	Images        []string        `json:"images"`
	UnitPrice     float64         `json:"unit_price" validate:"gte=0"`
	UnitSalePrice *float64        `json:"unit_sale_price" validate:"omitempty,gte=0"`
	Variant       *domain.Variant `json:"variant"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r.Context())

	h.mu.Lock()
	lines := append([]domain.CartLine(nil), h.carts[token]...)
	h.mu.Unlock()

	if lines == nil {
		lines = []domain.CartLine{}
	}
	h.respondWithJSON(w, http.StatusOK, lines)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r.Context())

	var input AddLineInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Adding the same product/variant again bumps the quantity instead of
	// duplicating the line.
	for i, line := range h.carts[token] {
		if line.ProductID == input.ProductID && sameVariant(line.Variant, input.VariantID) {
			h.carts[token][i].Quantity += input.Quantity
			h.respondWithJSON(w, http.StatusOK, h.carts[token][i])
			return
		}
	}

	h.nextID++
	line := domain.CartLine{
		ID:            h.nextID,
		ProductID:     input.ProductID,
		ProductName:   input.ProductName,
		ProductImages: domain.NormalizeImages(input.Images),
		UnitPrice:     input.UnitPrice,
		UnitSalePrice: input.UnitSalePrice,
		Variant:       input.Variant,
		Quantity:      input.Quantity,
	}
	h.carts[token] = append(h.carts[token], line)
	h.respondWithJSON(w, http.StatusCreated, line)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r.Context())

	idStr := chi.URLParam(r, "lineId")
	lineID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || lineID <= 0 {
		h.respondWithError(w, http.StatusBadRequest, "Invalid line ID format")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	lines := h.carts[token]
	for i, line := range lines {
		if line.ID == lineID {
			h.carts[token] = append(lines[:i], lines[i+1:]...)
			h.respondWithJSON(w, http.StatusNoContent, nil)
			return
		}
	}
	h.respondWithError(w, http.StatusNotFound, "Cart line not found")
}

func sameVariant(variant *domain.Variant, variantID *int64) bool {
	if variant == nil || variantID == nil {
		return variant == nil && variantID == nil
	}
	return variant.ID == *variantID
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// --- Route Registration ---

// RegisterRoutes sets up the stub API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Get("/", h.GetCart)
		r.Post("/", h.AddLine)
		r.Delete("/{lineId}", h.RemoveLine)
	})
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header || strings.TrimSpace(token) == "" {
			h.respondWithError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		ctx := context.WithValue(r.Context(), tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
