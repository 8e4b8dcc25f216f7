package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RemoteCartRepository is the authenticated user's cart, backed by the
// storefront REST API. Every mutation reserves or releases stock on the server.
type RemoteCartRepository struct {
	baseURL string
	token   string
	client  *http.Client
}

// RemoteOption customises a RemoteCartRepository.
type RemoteOption func(*RemoteCartRepository)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteCartRepository) { r.client = c }
}

func NewRemoteCartRepository(baseURL, token string, opts ...RemoteOption) *RemoteCartRepository {
	r := &RemoteCartRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ CartRepository = (*RemoteCartRepository)(nil)

func (r *RemoteCartRepository) Get(ctx context.Context) (*Cart, error) {
	return r.do(ctx, http.MethodGet, "/v1/cart", nil)
}

func (r *RemoteCartRepository) AddItem(ctx context.Context, item NewItem) (*Cart, error) {
	if item.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return r.do(ctx, http.MethodPost, "/v1/cart/items", map[string]interface{}{
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})
}

func (r *RemoteCartRepository) SetQuantity(ctx context.Context, itemID string, qty int64) (*Cart, error) {
	return r.do(ctx, http.MethodPatch, "/v1/cart/items/"+url.PathEscape(itemID), map[string]int64{"quantity": qty})
}

func (r *RemoteCartRepository) RemoveItem(ctx context.Context, itemID string) (*Cart, error) {
	return r.do(ctx, http.MethodDelete, "/v1/cart/items/"+url.PathEscape(itemID), nil)
}

func (r *RemoteCartRepository) Clear(ctx context.Context) (*Cart, error) {
	return r.do(ctx, http.MethodDelete, "/v1/cart", nil)
}

// do sends one request. A transport failure (no HTTP response at all) is
// retried once; HTTP error responses are never retried.
func (r *RemoteCartRepository) do(ctx context.Context, method, path string, body interface{}) (*Cart, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt < 2; attempt++ {
		resp, err = r.send(ctx, method, path, payload)
		if err == nil || ctx.Err() != nil {
			break
		}
		log.Warn().Err(err).Str("method", method).Str("path", path).Int("attempt", attempt+1).Msg("cartclient: request failed")
	}
	if err != nil {
		return nil, fmt.Errorf("cartclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	var cart Cart
	if err := json.NewDecoder(resp.Body).Decode(&cart); err != nil {
		return nil, fmt.Errorf("cartclient: decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []LineItem{}
	}
	return &cart, nil
}

func (r *RemoteCartRepository) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)
	return r.client.Do(req)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env struct {
		Code      string `json:"code"`
		Detail    string `json:"detail"`
		Available *int64 `json:"available"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&env); err == nil {
		apiErr.Code = env.Code
		apiErr.Detail = env.Detail
		apiErr.Available = env.Available
	}
	if apiErr.Code == "" {
		switch resp.StatusCode {
		case http.StatusNotFound:
			apiErr.Code = CodeNotFound
		case http.StatusUnauthorized:
			apiErr.Code = CodeUnauthorized
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
