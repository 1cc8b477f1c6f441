package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"funnelboard/internal/config"
)

// DefaultPageSize is Chatwoot's fixed conversation page size. A page with
// fewer records than this is the only pagination termination signal; the
// client never relies on total-count metadata.
const DefaultPageSize = 25

// Client is a thin HTTP client for the Chatwoot account API. Authentication
// uses a static api_access_token header supplied via configuration.
type Client struct {
	baseURL  string
	apiToken string
	pageSize int
	client   *http.Client
	logger   *zap.Logger
}

// NewClient creates a Chatwoot API client from configuration.
func NewClient(cfg config.ChatwootConfig, logger *zap.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		pageSize: pageSize,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// ListAllConversations fetches every conversation by walking successive pages
// until a short page signals exhaustion. Pagination is inherently sequential:
// the next page is requested only after the prior one came back full.
func (c *Client) ListAllConversations(ctx context.Context) ([]Conversation, error) {
	var all []Conversation

	for page := 1; ; page++ {
		result, err := c.ListConversations(ctx, page, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch conversations page %d: %w", page, err)
		}

		all = append(all, result.Payload...)

		if len(result.Payload) < c.pageSize {
			break
		}
	}

	c.logger.Debug("Fetched all conversations", zap.Int("count", len(all)))
	return all, nil
}

// ListConversations fetches a single page of conversations, optionally
// restricted to the given labels.
func (c *Client) ListConversations(ctx context.Context, page int, labels []string) (*ConversationPage, error) {
	params := url.Values{}
	params.Set("status", "all")
	params.Set("page", strconv.Itoa(page))
	params.Set("sort_by", "last_activity_at_desc")
	if len(labels) > 0 {
		params.Set("labels", strings.Join(labels, ","))
	}

	// The conversation listing nests the page under a "data" envelope.
	var envelope struct {
		Data ConversationPage `json:"data"`
	}
	if err := c.get(ctx, "/conversations", params, &envelope); err != nil {
		return nil, err
	}

	return &envelope.Data, nil
}

// SearchConversations resolves a free-text query to contacts, then gathers the
// conversations of every matched contact. The per-contact fetches are issued
// concurrently and joined before use. An optional label filter is applied
// in memory.
func (c *Client) SearchConversations(ctx context.Context, query string, labels []string) (*ConversationPage, error) {
	params := url.Values{}
	params.Set("q", query)

	var contactsResp struct {
		Payload []Contact `json:"payload"`
	}
	if err := c.get(ctx, "/contacts/search", params, &contactsResp); err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}

	contacts := contactsResp.Payload
	if len(contacts) == 0 {
		return &ConversationPage{Payload: []Conversation{}}, nil
	}

	results := make([][]Conversation, len(contacts))
	var wg sync.WaitGroup
	for i, contact := range contacts {
		wg.Add(1)
		go func(i, contactID int) {
			defer wg.Done()
			convs, err := c.contactConversations(ctx, contactID)
			if err != nil {
				// A single contact failing does not sink the search.
				c.logger.Warn("Failed to fetch conversations for contact",
					zap.Int("contact_id", contactID),
					zap.Error(err))
				return
			}
			results[i] = convs
		}(i, contact.ID)
	}
	wg.Wait()

	var all []Conversation
	for _, convs := range results {
		for _, conv := range convs {
			if len(labels) > 0 && !conv.HasAnyLabel(labels...) {
				continue
			}
			all = append(all, conv)
		}
	}
	if all == nil {
		all = []Conversation{}
	}

	return &ConversationPage{
		Payload: all,
		Meta:    PageMeta{Count: len(all), AllCount: len(all)},
	}, nil
}

// contactConversations fetches every conversation belonging to a contact.
func (c *Client) contactConversations(ctx context.Context, contactID int) ([]Conversation, error) {
	var resp struct {
		Payload []Conversation `json:"payload"`
	}
	path := fmt.Sprintf("/contacts/%d/conversations", contactID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// ListInboxes fetches all inboxes of the account.
func (c *Client) ListInboxes(ctx context.Context) ([]Inbox, error) {
	var resp struct {
		Payload []Inbox `json:"payload"`
	}
	if err := c.get(ctx, "/inboxes", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch inboxes: %w", err)
	}
	return resp.Payload, nil
}

// ListLabels fetches the label titles configured on the account.
func (c *Client) ListLabels(ctx context.Context) ([]string, error) {
	var resp struct {
		Payload []struct {
			Title string `json:"title"`
		} `json:"payload"`
	}
	if err := c.get(ctx, "/labels", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch labels: %w", err)
	}

	titles := make([]string, 0, len(resp.Payload))
	for _, label := range resp.Payload {
		titles = append(titles, label.Title)
	}
	return titles, nil
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api_access_token", c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
