package api

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

	"go.uber.org/zap"
)

// Client talks to the ops backend REST API. Request/response shapes are
// owned by the backend; this client only decodes the fields it needs.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// New creates a REST client for the given base URL and auth token.
func New(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Warn("backend request failed",
			zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// ListConversations returns the signed-in user's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/chat/conversations/", nil, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// CreateConversation opens (or returns the existing) 1:1 conversation
// with the given staff user.
func (c *Client) CreateConversation(ctx context.Context, userID int64) (*Conversation, error) {
	var conv Conversation
	body := map[string]int64{"user_id": userID}
	if err := c.do(ctx, http.MethodPost, "/chat/conversations/", nil, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListMessages returns the messages of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	var msgs []Message
	path := fmt.Sprintf("/chat/conversations/%d/messages/", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message and returns the server-created record.
// There is no client-side message id; the server is the source of truth.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, content, messageType string, replyTo *int64) (*Message, error) {
	body := map[string]any{
		"content":      content,
		"message_type": messageType,
	}
	if replyTo != nil {
		body["reply_to"] = *replyTo
	}
	var msg Message
	path := fmt.Sprintf("/chat/conversations/%d/messages/", conversationID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead acknowledges all inbound messages of a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/chat/conversations/%d/mark-read/", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// MessageableUsers returns the staff user directory, optionally filtered
// by search text.
func (c *Client) MessageableUsers(ctx context.Context, search string) ([]User, error) {
	var q url.Values
	if search != "" {
		q = url.Values{"search": {search}}
	}
	var users []User
	if err := c.do(ctx, http.MethodGet, "/chat/messageable-users/", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SearchEntities runs a free-text search over one entity collection
// (products, visits, patients). Empty query yields the backend's
// most-recent listing.
func (c *Client) SearchEntities(ctx context.Context, entity, query string) ([]EntityHit, error) {
	q := url.Values{"q": {query}}
	var hits []EntityHit
	path := "/" + entity + "/search/"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// SearchFundRequests returns fund requests (memos). With mine set, the
// listing is scoped to the requester's own items.
func (c *Client) SearchFundRequests(ctx context.Context, query string, mine bool) ([]EntityHit, error) {
	q := url.Values{"q": {query}}
	if mine {
		q.Set("mine", "true")
	}
	var hits []EntityHit
	if err := c.do(ctx, http.MethodGet, "/fund-requests/search/", q, nil, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// EntityDetail fetches the detail payload for a reference preview.
func (c *Client) EntityDetail(ctx context.Context, entity string, id int64) (*EntityDetail, error) {
	var detail EntityDetail
	path := fmt.Sprintf("/%s/%d/summary/", entity, id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SearchGifs queries the backend gif proxy.
func (c *Client) SearchGifs(ctx context.Context, query string) ([]Gif, error) {
	q := url.Values{"q": {query}}
	var gifs []Gif
	if err := c.do(ctx, http.MethodGet, "/chat/gifs/", q, nil, &gifs); err != nil {
		return nil, err
	}
	return gifs, nil
}
