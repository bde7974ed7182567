// Package chatapi is the REST client for the chat API: conversation list,
// message list, send, create, close and authentication.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"channah-support-chat/internal/dto"
	"channah-support-chat/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGlobal(c.log).Named("chatapi")
	return c
}

// WithCredential returns a copy of c that authenticates with token.
func (c *Client) WithCredential(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) HasCredential() bool {
	return c.token != ""
}

func (c *Client) Login(ctx context.Context, email, password string) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", false, dto.LoginRequest{Email: email, Password: password}, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", false, req, &out)
	return out, err
}

func (c *Client) ListConversations(ctx context.Context) ([]dto.Conversation, error) {
	var out []dto.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateConversation(ctx context.Context, subject, message string) (dto.Conversation, error) {
	var out dto.Conversation
	err := c.do(ctx, http.MethodPost, "/conversations", true, dto.CreateConversationRequest{Subject: subject, Message: message}, &out)
	return out, err
}

// ListMessages returns the full message list in server order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]dto.Message, error) {
	var out []dto.Message
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "messages"), true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (dto.Message, error) {
	var out dto.Message
	err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "messages"), true, dto.SendMessageRequest{Content: content}, &out)
	return out, err
}

func (c *Client) CloseConversation(ctx context.Context, conversationID string) (dto.Conversation, error) {
	var out dto.Conversation
	err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "close"), true, nil, &out)
	return out, err
}

func conversationPath(id, action string) string {
	return "/conversation/" + url.PathEscape(id) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	if authed && c.token == "" {
		return &LoginRequiredError{Reason: ReasonMissingToken}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	c.log.Debug("chat api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload dto.ApiError
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}
