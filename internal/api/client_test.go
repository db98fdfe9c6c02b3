package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-client/internal/domain"
	"storefront-client/internal/session"
)

func PtrTo[T any](v T) *T {
	return &v
}

func TestClient_FetchCart_DecodesLinesAndSendsBearer(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/cart", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]domain.CartLine{
			{ID: 1, ProductID: 10, ProductName: "Mug", ProductImages: []string{"/mug.png"}, UnitPrice: 9.5, Quantity: 2},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zap.NewNop())
	lines, err := client.FetchCart(context.Background(), session.Authenticated("tok-1"))

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(1), lines[0].ID)
	assert.Equal(t, "Mug", lines[0].ProductName)
}

func TestClient_FetchCart_NullBodyYieldsEmptySlice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zap.NewNop())
	lines, err := client.FetchCart(context.Background(), session.Authenticated("tok-1"))

	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestClient_AddLine_PostsPayload(t *testing.T) {
	var gotInput AddLineInput
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/cart", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zap.NewNop())
	input := AddLineInput{
		ProductID:   10,
		VariantID:   PtrTo(int64(3)),
		Quantity:    2,
		ProductName: "Mug",
		Images:      []string{"/mug.png"},
		UnitPrice:   9.5,
	}
	err := client.AddLine(context.Background(), session.Authenticated("tok-1"), input)

	require.NoError(t, err)
	assert.Equal(t, input, gotInput)
}

func TestClient_RemoveLine_TargetsLineID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zap.NewNop())
	err := client.RemoveLine(context.Background(), session.Authenticated("tok-1"), 42)

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/cart/42", gotPath)
}

func TestClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zap.NewNop())
	_, err := client.FetchCart(context.Background(), session.Guest())

	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestClient_ServerErrorBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "cart service unavailable"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zap.NewNop())
	err := client.AddLine(context.Background(), session.Authenticated("tok-1"), AddLineInput{ProductID: 1, Quantity: 1})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "cart service unavailable", apiErr.Message)
}

func TestClient_GuestSessionSendsNoAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, zap.NewNop())
	_, err := client.FetchCart(context.Background(), session.Guest())

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}
