package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultAPIBase = "https://slack.com/api"

// SlackClient is a minimal Slack Web API client covering the calls the bot
// needs: chat.postMessage, conversations.open and users.info.
type SlackClient struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewSlackClient(token, baseURL string) *SlackClient {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &SlackClient{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	User struct {
		RealName string `json:"real_name"`
		Profile  struct {
			Email string `json:"email"`
		} `json:"profile"`
	} `json:"user"`
}

func (c *SlackClient) Send(ctx context.Context, dest Destination, msg Message) error {
	payload := map[string]any{
		"channel": dest.Channel,
		"text":    msg.Text,
	}
	if dest.ThreadTS != "" {
		payload["thread_ts"] = dest.ThreadTS
	}

	resp, err := c.post(ctx, "chat.postMessage", payload)
	if err != nil {
		return err
	}
	if !resp.OK {
		if resp.Error == "channel_not_found" || resp.Error == "is_archived" {
			return fmt.Errorf("send to %s: %w", dest.Channel, ErrChannelNotFound)
		}
		return fmt.Errorf("chat.postMessage: %s", resp.Error)
	}
	return nil
}

func (c *SlackClient) OpenDM(ctx context.Context, userID string) (string, error) {
	resp, err := c.post(ctx, "conversations.open", map[string]any{"users": userID})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		if resp.Error == "user_not_found" {
			return "", fmt.Errorf("open dm with %s: %w", userID, ErrChannelNotFound)
		}
		return "", fmt.Errorf("conversations.open: %s", resp.Error)
	}
	return resp.Channel.ID, nil
}

func (c *SlackClient) UserInfo(ctx context.Context, userID string) (string, string, error) {
	endpoint := fmt.Sprintf("%s/users.info?user=%s", c.baseURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.do(req)
	if err != nil {
		return "", "", err
	}
	if !resp.OK {
		return "", "", fmt.Errorf("users.info: %s", resp.Error)
	}
	return resp.User.RealName, resp.User.Profile.Email, nil
}

func (c *SlackClient) post(ctx context.Context, method string, payload map[string]any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	return c.do(req)
}

func (c *SlackClient) do(req *http.Request) (*apiResponse, error) {
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack request failed: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode >= 500 {
		return nil, fmt.Errorf("slack API error: status %d", httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode slack response: %w", err)
	}
	return &resp, nil
}
