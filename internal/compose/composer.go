package compose

import (
	"context"
	"strings"
	"sync"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
	"go.uber.org/zap"
)

// maxResults caps mention search results per type.
const maxResults = 10

// GifCommand is the composer text that opens the gif picker instead of
// sending a message.
const GifCommand = "/gif"

// elevatedRoles may browse all fund requests, not just their own.
var elevatedRoles = map[string]bool{
	"admin":   true,
	"manager": true,
}

// Searcher is the slice of the REST client the composer needs.
type Searcher interface {
	SearchEntities(ctx context.Context, entity, query string) ([]api.EntityHit, error)
	SearchFundRequests(ctx context.Context, query string, mine bool) ([]api.EntityHit, error)
	MessageableUsers(ctx context.Context, search string) ([]api.User, error)
}

// Composer tracks the message being written: raw text, the mention
// trigger state, and staged attachments. Attachments are collapsed into
// reference tokens only when the message is built for send.
type Composer struct {
	searcher Searcher
	logger   *zap.Logger
	role     string

	mu     sync.Mutex
	text   string
	cursor int
	state  MentionState
	staged []reftoken.Ref
}

// New creates a composer. role decides fund-request search scoping.
func New(searcher Searcher, role string, logger *zap.Logger) *Composer {
	return &Composer{
		searcher: searcher,
		logger:   logger,
		role:     role,
		state:    MentionState{Phase: PhaseIdle},
	}
}

// SetInput updates the raw text and cursor and returns the resulting
// mention state.
func (c *Composer) SetInput(text string, cursor int) MentionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	c.cursor = cursor
	c.state = DetectMention(text, cursor)
	return c.state
}

// Text returns the current raw input text.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// State returns the current mention state.
func (c *Composer) State() MentionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectType replaces the trigger text with the canonical prefix of the
// chosen type and re-enters searching. Returns the new text and cursor.
func (c *Composer) SelectType(opt TypeOption) (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == PhaseIdle {
		return c.text, c.cursor
	}

	start := c.state.TriggerStart
	c.text = c.text[:start+1] + opt.Prefix + c.text[c.cursor:]
	c.cursor = start + 1 + len(opt.Prefix)
	c.state = DetectMention(c.text, c.cursor)
	return c.text, c.cursor
}

// Search resolves the live query against the backend for the active
// mention type. An empty query returns the recent-items listing. The
// result is capped at maxResults.
func (c *Composer) Search(ctx context.Context) ([]api.EntityHit, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state.Phase != PhaseSearching {
		return nil, nil
	}

	var (
		hits []api.EntityHit
		err  error
	)
	switch state.Type {
	case reftoken.FundRequest:
		hits, err = c.searchFundRequests(ctx, state.Query)
	case reftoken.User:
		var users []api.User
		users, err = c.searcher.MessageableUsers(ctx, state.Query)
		for _, u := range users {
			hits = append(hits, api.EntityHit{ID: u.ID, Name: u.Name, Subtitle: u.Role})
		}
	default:
		entity := state.Type + "s"
		hits, err = c.searcher.SearchEntities(ctx, entity, state.Query)
	}
	if err != nil {
		c.logger.Warn("mention search failed",
			zap.String("type", state.Type), zap.String("query", state.Query), zap.Error(err))
		return nil, err
	}

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// searchFundRequests applies the role scoping: elevated roles see the
// full listing filtered by title substring client-side, everyone else
// only their own requests.
func (c *Composer) searchFundRequests(ctx context.Context, query string) ([]api.EntityHit, error) {
	if !elevatedRoles[c.role] {
		return c.searcher.SearchFundRequests(ctx, query, true)
	}

	all, err := c.searcher.SearchFundRequests(ctx, "", false)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}
	needle := strings.ToLower(query)
	var hits []api.EntityHit
	for _, h := range all {
		if strings.Contains(strings.ToLower(h.Name), needle) {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

// SelectHit stages the chosen entity as an attachment, deletes the raw
// trigger substring from the input, and closes the dropdown. No
// placeholder text is inserted. Returns the restored text and cursor.
func (c *Composer) SelectHit(hit api.EntityHit) (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseSearching {
		return c.text, c.cursor
	}

	c.staged = append(c.staged, reftoken.Ref{
		Type: c.state.Type,
		ID:   hit.ID,
		Name: reftoken.SanitizeName(hit.Name),
	})

	start := c.state.TriggerStart
	c.text = c.text[:start] + c.text[c.cursor:]
	c.cursor = start
	c.state = MentionState{Phase: PhaseIdle}
	return c.text, c.cursor
}

// Staged returns the staged attachments in staging order.
func (c *Composer) Staged() []reftoken.Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]reftoken.Ref(nil), c.staged...)
}

// SetStaged replaces the staged attachments (draft restore).
func (c *Composer) SetStaged(refs []reftoken.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = append([]reftoken.Ref(nil), refs...)
}

// RemoveStaged drops the attachment chip at index i.
func (c *Composer) RemoveStaged(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.staged) {
		return
	}
	c.staged = append(c.staged[:i], c.staged[i+1:]...)
}

// IsGifCommand reports whether the composed text is the /gif command
// (trimmed, case-insensitive). Such text is never sent as a message.
func IsGifCommand(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), GifCommand)
}

// BuildOutgoing collapses the composer into outgoing message content
// and a message type. The type is that of the first staged attachment,
// or "text". ok is false when there is nothing to send.
func (c *Composer) BuildOutgoing() (content, messageType string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	content = reftoken.Append(c.text, c.staged)
	if content == "" {
		return "", "", false
	}
	messageType = "text"
	if len(c.staged) > 0 {
		messageType = c.staged[0].Type
	}
	return content, messageType, true
}

// Clear resets text and attachments after a successful send. On a
// failed send it is NOT called, preserving everything for retry.
func (c *Composer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = ""
	c.cursor = 0
	c.staged = nil
	c.state = MentionState{Phase: PhaseIdle}
}
