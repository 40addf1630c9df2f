package discord

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the Discord REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

// Client represents a Discord REST API client
type Client struct {
	baseURL   string
	token     string
	http      *resty.Client
	nameCache map[string]string // Cache for channel names
	cacheMu   sync.RWMutex
}

// NewClient creates a new Discord API client authenticated with a bot token
func NewClient(baseURL, botToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     botToken,
		nameCache: make(map[string]string),
	}

	// Configure resty client
	client.http = resty.New().
		SetHeader("User-Agent", "DiscordBot (pollboard, 1.0)").
		SetHeader("Authorization", "Bot "+botToken).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on 429 (rate limited) and 5xx server errors
			return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		})

	return client
}

// Get performs a GET request to the Discord API
func (c *Client) Get(endpoint string, params map[string]string) (*resty.Response, error) {
	url := c.buildURL(endpoint)
	req := c.http.R()

	if params != nil {
		req.SetQueryParams(params)
	}

	return req.Get(url)
}

// Patch performs a PATCH request to the Discord API
func (c *Client) Patch(endpoint string, payload interface{}) (*resty.Response, error) {
	url := c.buildURL(endpoint)
	return c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Patch(url)
}

// Delete performs a DELETE request to the Discord API
func (c *Client) Delete(endpoint string) (*resty.Response, error) {
	url := c.buildURL(endpoint)
	return c.http.R().Delete(url)
}

// EditMessage updates the content/embeds of a poll message
func (c *Client) EditMessage(channelID, messageID string, payload interface{}) error {
	endpoint := fmt.Sprintf("channels/%s/messages/%s", channelID, messageID)
	resp, err := c.Patch(endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to edit message %s: %w", messageID, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("discord API returned HTTP %d editing message %s", resp.StatusCode(), messageID)
	}
	return nil
}

// DeleteMessage removes a poll message from its channel
func (c *Client) DeleteMessage(channelID, messageID string) error {
	endpoint := fmt.Sprintf("channels/%s/messages/%s", channelID, messageID)
	resp, err := c.Delete(endpoint)
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	// 404 means the message is already gone, which is fine for cleanup
	if !resp.IsSuccess() && resp.StatusCode() != 404 {
		return fmt.Errorf("discord API returned HTTP %d deleting message %s", resp.StatusCode(), messageID)
	}
	return nil
}

// ClearReactions removes all reactions from a poll message so closed polls
// stop accepting reaction votes
func (c *Client) ClearReactions(channelID, messageID string) error {
	endpoint := fmt.Sprintf("channels/%s/messages/%s/reactions", channelID, messageID)
	resp, err := c.Delete(endpoint)
	if err != nil {
		return fmt.Errorf("failed to clear reactions on message %s: %w", messageID, err)
	}
	if !resp.IsSuccess() && resp.StatusCode() != 404 {
		return fmt.Errorf("discord API returned HTTP %d clearing reactions on message %s", resp.StatusCode(), messageID)
	}
	return nil
}

// ChannelName retrieves the name of a channel (with caching)
func (c *Client) ChannelName(channelID string) string {
	c.cacheMu.RLock()
	if name, exists := c.nameCache[channelID]; exists {
		c.cacheMu.RUnlock()
		return name
	}
	c.cacheMu.RUnlock()

	// Fetch from API
	endpoint := fmt.Sprintf("channels/%s", channelID)

	resp, err := c.Get(endpoint, nil)
	if err != nil || !resp.IsSuccess() {
		// Fallback to ID if fetch fails
		c.cacheMu.Lock()
		c.nameCache[channelID] = channelID
		c.cacheMu.Unlock()
		return channelID
	}

	var result struct {
		Name string `json:"name"`
	}

	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		c.cacheMu.Lock()
		c.nameCache[channelID] = channelID
		c.cacheMu.Unlock()
		return channelID
	}

	name := result.Name
	if name == "" {
		name = channelID
	}

	c.cacheMu.Lock()
	c.nameCache[channelID] = name
	c.cacheMu.Unlock()

	return name
}

// buildURL constructs the full URL for an endpoint
func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}

// SetTimeout allows customizing the timeout for specific operations
func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.SetTimeout(timeout)
}
