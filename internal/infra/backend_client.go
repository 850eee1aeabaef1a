package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ally-360/pos-terminal/internal/apierror"
	"github.com/ally-360/pos-terminal/internal/dto"
)

// BackendClient talks JSON to the authoritative ledger. Every call goes
// through the circuit breaker; non-2xx answers are decoded into
// *apierror.RemoteError so callers can branch on status and code.
type BackendClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewBackendClient(baseURL, token string, timeout time.Duration, cb *CircuitBreaker) *BackendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cb == nil {
		cb = NewCircuitBreaker(DefaultCBConfig())
	}
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

// Breaker exposes the breaker state for health reporting.
func (c *BackendClient) Breaker() *CircuitBreaker {
	return c.cb
}

func (c *BackendClient) OpenRegister(ctx context.Context, req dto.OpenRegisterRequest) (*dto.RegisterResponse, error) {
	var out dto.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/v1/registers/open", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentRegister returns nil, nil when the backend answers 404.
func (c *BackendClient) CurrentRegister(ctx context.Context, pdvID int) (*dto.RegisterResponse, error) {
	var out dto.RegisterResponse
	path := "/v1/registers/current?pdv_id=" + strconv.Itoa(pdvID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		var remote *apierror.RemoteError
		if errors.As(err, &remote) && remote.NotFound() {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) CloseRegister(ctx context.Context, req dto.CloseRegisterRequest) (*dto.RegisterResponse, error) {
	var out dto.RegisterResponse
	path := "/v1/registers/" + url.PathEscape(req.RegisterID) + "/close"
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) ClosingSummary(ctx context.Context, registerID string) (*dto.ClosingSummaryResponse, error) {
	var out dto.ClosingSummaryResponse
	path := "/v1/registers/" + url.PathEscape(registerID) + "/summary"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) CreateSale(ctx context.Context, req dto.CreateSaleRequest) (*dto.CreateSaleResponse, error) {
	var out dto.CreateSaleResponse
	if err := c.do(ctx, http.MethodPost, "/v1/pos/sales", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("backend: sale acknowledged without an id")
	}
	return &out, nil
}

func (c *BackendClient) RecordMovement(ctx context.Context, registerID string, req dto.CreateMovementRequest) (*dto.RegisterMovement, error) {
	var out dto.RegisterMovement
	path := "/v1/registers/" + url.PathEscape(registerID) + "/movements"
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request. A 4xx answer is returned as *apierror.RemoteError
// without counting against the breaker.
func (c *BackendClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal %s %s: %w", method, path, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var clientErr error
	err = c.cb.Execute(func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("backend: %s %s unreachable: %w", method, path, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return decodeRemoteError(resp)
		case resp.StatusCode >= 400:
			clientErr = decodeRemoteError(resp)
			return nil
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return clientErr
}

// decodeRemoteError reads the {detail, code} envelope. Bodies that are not
// JSON keep their first bytes as the detail.
func decodeRemoteError(resp *http.Response) *apierror.RemoteError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	remote := &apierror.RemoteError{Status: resp.StatusCode}
	var envelope apierror.APIError
	if err := json.Unmarshal(raw, &envelope); err == nil && (envelope.Detail != "" || envelope.Code != "") {
		remote.Detail = envelope.Detail
		remote.Code = envelope.Code
		return remote
	}
	remote.Detail = strings.TrimSpace(string(raw))
	if remote.Detail == "" {
		remote.Detail = http.StatusText(resp.StatusCode)
	}
	return remote
}
