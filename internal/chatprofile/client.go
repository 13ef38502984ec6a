package chatprofile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ventia/crm-ingest/pkg/logging"
)

// Client looks up display names for chat identifiers through the external
// chat-profile API. Lookups are best-effort: any failure yields (_, false)
// and the caller falls back to a placeholder name.
type Client struct {
	baseURL    string
	clientID   string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// Config controls how the profile client behaves.
type Config struct {
	BaseURL    string
	ClientID   string
	Token      string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientID:   cfg.ClientID,
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// Enabled reports whether the client is configured for lookups.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.clientID != ""
}

type detailsResponse struct {
	Payload struct {
		Name  string `json:"name"`
		Image string `json:"image,omitempty"`
	} `json:"payload"`
}

// FetchName resolves the contact name for a chat id.
func (c *Client) FetchName(ctx context.Context, chatID string) (string, bool) {
	if !c.Enabled() || chatID == "" {
		return "", false
	}

	endpoint := fmt.Sprintf("%s/api/v1/%s/chats/%s/details",
		c.baseURL, url.PathEscape(c.clientID), url.PathEscape(chatID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("profile request build failed", "error", err)
		return "", false
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("profile lookup failed", "error", err, "chat_id", chatID)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("profile lookup returned non-200", "status", resp.StatusCode, "chat_id", chatID)
		return "", false
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		c.logger.Warn("profile response decode failed", "error", err)
		return "", false
	}
	name := strings.TrimSpace(details.Payload.Name)
	if name == "" {
		return "", false
	}
	return name, true
}
