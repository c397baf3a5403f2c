// Package remote is a client for the board server's REST API.
//
// The API exposes boards, columns and cards as resources under a common base
// URL, for example http://localhost:8000/api. Every path ends with a slash.
// Changes made through this client are not applied locally; the server
// announces them over the push channel like any other change.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kanbanlive/boardsync.go/internal/codec"
	"github.com/kanbanlive/boardsync.go/internal/rand"
	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

// RequestIDHeader carries a random id per request so that client and server
// logs can be correlated.
const RequestIDHeader = "X-Request-ID"

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	basePath   string
	httpClient *http.Client
	codec      codec.Codec
	logger     logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCodec selects the body encoding. JSON is the default.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) {
		c.codec = cd
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, constants.ErrNoBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	c := &Client{
		baseURL:    u.String(),
		basePath:   u.Path,
		httpClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
		codec:      codec.JSON{},
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := c.codec.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", c.codec.ContentType())
	}
	req.Header.Set("Accept", c.codec.ContentType())

	requestID := rand.NewRequestID(constants.RequestIDLength)
	req.Header.Set(RequestIDHeader, requestID)

	c.logger.Debug("remote.Client sending request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeResponse closes the body. target may be nil when no body is expected.
func (c *Client) decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := &StatusError{
			Method:     resp.Request.Method,
			Path:       strings.TrimPrefix(resp.Request.URL.Path, c.basePath),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		c.logger.Debug("remote.Client request failed", "error", err)
		return err
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := c.codec.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.decodeResponse(resp, target)
}

// Boards

func (c *Client) GetBoard(ctx context.Context, id models.BoardID) (*models.Board, error) {
	var b models.Board
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/boards/%d/", id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// BoardPatch is a partial board update. Nil fields are left unchanged.
type BoardPatch struct {
	Name *string `json:"name,omitempty"`
}

func (c *Client) UpdateBoard(ctx context.Context, id models.BoardID, patch BoardPatch) (*models.Board, error) {
	var b models.Board
	if err := c.call(ctx, http.MethodPatch, fmt.Sprintf("/boards/%d/", id), patch, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) RenameBoard(ctx context.Context, id models.BoardID, name string) (*models.Board, error) {
	return c.UpdateBoard(ctx, id, BoardPatch{Name: &name})
}

// Columns

type NewColumn struct {
	Title string         `json:"title"`
	Board models.BoardID `json:"board"`
	Order int            `json:"order"`
}

func (c *Client) CreateColumn(ctx context.Context, col NewColumn) (*models.Column, error) {
	var out models.Column
	if err := c.call(ctx, http.MethodPost, "/columns/", col, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteColumn(ctx context.Context, id models.ColumnID) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/columns/%d/", id), nil, nil)
}

// Cards

type NewCard struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Column      models.ColumnID `json:"column"`
	DueDate     *models.Date    `json:"due_date,omitempty"`
}

func (c *Client) CreateCard(ctx context.Context, card NewCard) (*models.Card, error) {
	var out models.Card
	if err := c.call(ctx, http.MethodPost, "/cards/", card, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CardPatch is a partial card update. Nil fields are left unchanged.
type CardPatch struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Column      *models.ColumnID `json:"column,omitempty"`
	Order       *int             `json:"order,omitempty"`
	DueDate     *models.Date     `json:"due_date,omitempty"`
}

func (c *Client) UpdateCard(ctx context.Context, id models.CardID, patch CardPatch) (*models.Card, error) {
	var out models.Card
	if err := c.call(ctx, http.MethodPatch, fmt.Sprintf("/cards/%d/", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MoveCard files the card under column, and at order when it is not nil.
func (c *Client) MoveCard(ctx context.Context, id models.CardID, column models.ColumnID, order *int) error {
	_, err := c.UpdateCard(ctx, id, CardPatch{Column: &column, Order: order})
	return err
}

func (c *Client) DeleteCard(ctx context.Context, id models.CardID) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/cards/%d/", id), nil, nil)
}
