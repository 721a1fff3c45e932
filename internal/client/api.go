package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-order-pay/internal/domain"
)

// API talks to the checkout server. It serves a session as both its
// transaction source and its ledger.
type API struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

var ErrServer = errors.New("server error")

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *API) CreateTransaction(ctx context.Context, order domain.Order) (string, error) {
	var out struct {
		Transaction string `json:"transaction"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/createTransaction", order, &out); err != nil {
		if errors.Is(err, ErrServer) {
			return "", fmt.Errorf("%w: %w", domain.ErrBuild, err)
		}
		return "", err
	}
	if out.Transaction == "" {
		return "", fmt.Errorf("%w: empty transaction in response", domain.ErrBuild)
	}
	return out.Transaction, nil
}

func (a *API) AddOrder(ctx context.Context, order domain.Order) error {
	return a.do(ctx, http.MethodPost, "/api/orders", order, nil)
}

func (a *API) HasPurchased(ctx context.Context, buyer, itemID string) (bool, error) {
	q := url.Values{}
	q.Set("buyer", buyer)
	q.Set("itemID", itemID)
	var out struct {
		Purchased bool `json:"purchased"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/orders/purchased?"+q.Encode(), nil, &out); err != nil {
		return false, err
	}
	return out.Purchased, nil
}

func (a *API) FetchItem(ctx context.Context, buyer, itemID string) (domain.DeliveryRecord, error) {
	q := url.Values{}
	q.Set("buyer", buyer)
	var out domain.DeliveryRecord
	path := "/api/items/" + url.PathEscape(itemID) + "?" + q.Encode()
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.DeliveryRecord{}, err
	}
	return out, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var e apiError
		_ = json.Unmarshal(raw, &e)
		msg := e.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%w: %s", classify(resp.StatusCode), msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func classify(status int) error {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusForbidden:
		return domain.ErrNotPurchased
	case http.StatusConflict:
		return domain.ErrDuplicateReference
	default:
		return ErrServer
	}
}
