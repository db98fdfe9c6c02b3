package devapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-client/internal/api"
	"storefront-client/internal/domain"
	"storefront-client/internal/session"
)

// Helper for setting up tests with a chi router and handler
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := NewHandler(zap.NewNop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) *http.Response {
	t.Helper()
	var body *bytes.Buffer = bytes.NewBuffer(nil)
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func TestHandler_MissingTokenIsUnauthorized(t *testing.T) {
	server := setupTestServer(t)

	res, err := http.Get(server.URL + "/api/v1/cart")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "bearer token")
}

func TestHandler_GetCart_EmptyForNewToken(t *testing.T) {
	server := setupTestServer(t)

	res := doJSON(t, http.MethodGet, server.URL+"/api/v1/cart", "tok-1", nil)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	var lines []domain.CartLine
	require.NoError(t, json.NewDecoder(res.Body).Decode(&lines))
	assert.Empty(t, lines)
	assert.NotNil(t, lines)
}

func TestHandler_AddGetRemoveRoundTrip(t *testing.T) {
	server := setupTestServer(t)

	input := AddLineInput{
		ProductID:   10,
		Quantity:    2,
		ProductName: "Mug",
		Images:      []string{"/mug.png"},
		UnitPrice:   9.5,
	}
	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", "tok-1", input)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created domain.CartLine
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	res.Body.Close()
	assert.Positive(t, created.ID, "server must assign a line id")
	assert.Equal(t, 2, created.Quantity)

	res = doJSON(t, http.MethodGet, server.URL+"/api/v1/cart", "tok-1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var lines []domain.CartLine
	require.NoError(t, json.NewDecoder(res.Body).Decode(&lines))
	res.Body.Close()
	require.Len(t, lines, 1)

	res = doJSON(t, http.MethodDelete, server.URL+"/api/v1/cart/"+itoa(created.ID), "tok-1", nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res.Body.Close()

	res = doJSON(t, http.MethodGet, server.URL+"/api/v1/cart", "tok-1", nil)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&lines))
	res.Body.Close()
	assert.Empty(t, lines)
}

func TestHandler_AddLine_SameProductBumpsQuantity(t *testing.T) {
	server := setupTestServer(t)

	input := AddLineInput{ProductID: 10, Quantity: 1, ProductName: "Mug", UnitPrice: 9.5}
	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", "tok-1", input)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res.Body.Close()

	res = doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", "tok-1", input)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var updated domain.CartLine
	require.NoError(t, json.NewDecoder(res.Body).Decode(&updated))
	res.Body.Close()
	assert.Equal(t, 2, updated.Quantity)
}

func TestHandler_AddLine_ValidationFailure(t *testing.T) {
	server := setupTestServer(t)

	// Quantity missing and product name blank.
	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", "tok-1", AddLineInput{ProductID: 10})
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "Validation failed")
}

func TestHandler_RemoveLine_NotFound(t *testing.T) {
	server := setupTestServer(t)

	res := doJSON(t, http.MethodDelete, server.URL+"/api/v1/cart/999", "tok-1", nil)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHandler_CartsAreScopedPerToken(t *testing.T) {
	server := setupTestServer(t)

	input := AddLineInput{ProductID: 10, Quantity: 1, ProductName: "Mug", UnitPrice: 9.5}
	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", "tok-a", input)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res.Body.Close()

	res = doJSON(t, http.MethodGet, server.URL+"/api/v1/cart", "tok-b", nil)
	var lines []domain.CartLine
	require.NoError(t, json.NewDecoder(res.Body).Decode(&lines))
	res.Body.Close()
	assert.Empty(t, lines, "another identity must not see the cart")
}

// The api.Client and the stub speak the same contract end to end.
func TestHandler_WorksWithAPIClient(t *testing.T) {
	server := setupTestServer(t)

	client := api.NewClient(server.URL, nil, zap.NewNop())
	sess := session.Authenticated("tok-1")
	ctx := context.Background()

	require.NoError(t, client.AddLine(ctx, sess, api.AddLineInput{
		ProductID:   10,
		Quantity:    1,
		ProductName: "Mug",
		Images:      []string{"/mug.png"},
		UnitPrice:   9.5,
	}))

	lines, err := client.FetchCart(ctx, sess)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Mug", lines[0].ProductName)

	require.NoError(t, client.RemoveLine(ctx, sess, lines[0].ID))

	lines, err = client.FetchCart(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
