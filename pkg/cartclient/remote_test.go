package cartclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method, path, auth string
	body               map[string]interface{}
}

func cartServer(t *testing.T, status int, respBody string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method, rec.path, rec.auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

const oneLine = `{"id":"c1","items":[{"id":"i1","product_id":"A","quantity":2,"unit_price_snapshot":"3","line_total":"6"}],"total_count":2,"subtotal":"6"}`

func TestRemote_RequestsMatchAPI(t *testing.T) {
	ctx := context.Background()
	srv, rec := cartServer(t, http.StatusOK, oneLine)
	repo := NewRemoteCartRepository(srv.URL+"/", "tok")

	cart, err := repo.AddItem(ctx, NewItem{ProductID: "A", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/v1/cart/items", rec.path)
	assert.Equal(t, "Bearer tok", rec.auth)
	assert.Equal(t, "A", rec.body["product_id"])
	assert.EqualValues(t, 2, rec.body["quantity"])
	assert.Equal(t, int64(2), cart.TotalCount)
	require.Len(t, cart.Items, 1)
	assert.False(t, cart.Items[0].IsGuest())

	_, err = repo.SetQuantity(ctx, "i1", 5)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, "/v1/cart/items/i1", rec.path)
	assert.EqualValues(t, 5, rec.body["quantity"])

	_, err = repo.RemoveItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/v1/cart/items/i1", rec.path)

	_, err = repo.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/v1/cart", rec.path)

	_, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, rec.method)
}

func TestRemote_InsufficientStockError(t *testing.T) {
	srv, _ := cartServer(t, http.StatusConflict, `{"code":"InsufficientStock","detail":"sin stock","available":1}`)
	repo := NewRemoteCartRepository(srv.URL, "tok")

	_, err := repo.AddItem(context.Background(), NewItem{ProductID: "A", Quantity: 3})
	require.Error(t, err)
	assert.True(t, IsInsufficientStock(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	require.NotNil(t, apiErr.Available)
	assert.Equal(t, int64(1), *apiErr.Available)
}

func TestRemote_NotFoundWithoutEnvelope(t *testing.T) {
	srv, _ := cartServer(t, http.StatusNotFound, `404 page not found`)
	repo := NewRemoteCartRepository(srv.URL, "tok")

	_, err := repo.RemoveItem(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsInsufficientStock(err))
}

func TestRemote_RejectsNonPositiveAdd(t *testing.T) {
	repo := NewRemoteCartRepository("http://unused", "tok")
	_, err := repo.AddItem(context.Background(), NewItem{ProductID: "A"})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// flakyTransport fails the first n round trips before reaching next.
type flakyTransport struct {
	failures int32
	calls    int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.RoundTrip(r)
}

func TestRemote_RetriesTransportErrorOnce(t *testing.T) {
	srv, rec := cartServer(t, http.StatusOK, oneLine)

	flaky := &flakyTransport{failures: 1, next: http.DefaultTransport}
	repo := NewRemoteCartRepository(srv.URL, "tok", WithHTTPClient(&http.Client{Transport: flaky}))
	_, err := repo.AddItem(context.Background(), NewItem{ProductID: "A", Quantity: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 2, flaky.calls)
	assert.Equal(t, "A", rec.body["product_id"], "body resent on retry")

	down := &flakyTransport{failures: 5, next: http.DefaultTransport}
	repo = NewRemoteCartRepository(srv.URL, "tok", WithHTTPClient(&http.Client{Transport: down}))
	_, err = repo.Get(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 2, down.calls)
}

func TestRemote_HTTPErrorsAreNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemoteCartRepository(srv.URL, "tok").Get(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.EqualValues(t, 1, hits)
}
