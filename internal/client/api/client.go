// Package api содержит HTTP клиент коммит-эндпоинтов сервера для клиентской стороны
// (очередь синхронизации, утилита gigsync).
package api

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

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
)

const defaultRetries = 3

// Client ходит в API от имени одного пользователя.
type Client struct {
	baseURL    string
	token      string
	retries    uint64
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries задаёт число повторов при сетевых ошибках и 5xx. 0 отключает повторы.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// NewClient создаёт клиент. baseURL без завершающего слеша, например http://localhost:8080/api.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		retries: defaultRetries,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit отправляет подпись операции. payload может быть пустым.
func (c *Client) Commit(ctx context.Context, gigID uuid.UUID, action entity.Action, signature string, payload dto.ActionPayload) (*dto.GigResponse, error) {
	body := dto.CommitRequest{Signature: signature, ActionPayload: payload}
	path := fmt.Sprintf("/gigs/%s/%s/commit", gigID, action)

	var gig dto.GigResponse
	if err := c.do(ctx, http.MethodPost, path, body, &gig); err != nil {
		return nil, err
	}
	return &gig, nil
}

// SignatureStatus спрашивает у сервера статус подписи в сети:
// confirmed | finalized | failed | not_found.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (string, error) {
	var out struct {
		Signature string `json:"signature"`
		Status    string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/chain/signatures/"+url.PathEscape(signature), nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// GetGig возвращает задание.
func (c *Client) GetGig(ctx context.Context, gigID uuid.UUID) (*dto.GigResponse, error) {
	var gig dto.GigResponse
	if err := c.do(ctx, http.MethodGet, "/gigs/"+gigID.String(), nil, &gig); err != nil {
		return nil, err
	}
	return &gig, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

// do выполняет запрос. Сетевые ошибки и 5xx повторяются с экспоненциальной
// паузой, ответы 4xx возвращаются сразу.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var raw []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: сериализация запроса: %w", err)
		}
		raw = b
	}

	var policy backoff.BackOff = backoff.NewExponentialBackOff()
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx)

	return backoff.RetryNotify(func() error {
		err := c.once(ctx, method, path, raw, out)
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.HTTPStatus < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.Log.WithError(err).WithField("retry_in", wait).Debug("api: запрос не удался, повторяем")
	})
}

func (c *Client) once(ctx context.Context, method, path string, raw []byte, out any) error {
	var body io.Reader
	if raw != nil {
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("api: запрос: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("api: чтение ответа: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &Error{HTTPStatus: resp.StatusCode, Code: CodeInternal, Message: http.StatusText(resp.StatusCode)}
		}
		return backoff.Permanent(fmt.Errorf("api: разбор ответа: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		e := &Error{HTTPStatus: resp.StatusCode, Code: CodeInternal, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			e.Code = env.Error.Code
			e.Message = env.Error.Message
			e.Retryable = env.Error.Retryable
		}
		return e
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("api: разбор данных: %w", err))
	}
	return nil
}
