package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
)

// Client talks to the messenger REST API with a cookie session.
// It is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		base: u,
		http: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// Login primes the CSRF cookie and opens a session for username.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.do(ctx, http.MethodGet, "/login", nil, "", nil); err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}

	form := url.Values{"username": {username}, "password": {password}}
	body := strings.NewReader(form.Encode())
	if err := c.do(ctx, http.MethodPost, "/login", body, "application/x-www-form-urlencoded", nil); err != nil {
		return fmt.Errorf("login %s: %w", username, err)
	}
	log.Debug().Str("username", username).Msg("logged in")
	return nil
}

// Register creates an account and opens a session for it. The server
// rejects the request when confirmation differs from password.
func (c *Client) Register(ctx context.Context, username, password, confirmation string) error {
	if err := c.do(ctx, http.MethodGet, "/login", nil, "", nil); err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}

	form := url.Values{"username": {username}, "password": {password}, "confirmation": {confirmation}}
	body := strings.NewReader(form.Encode())
	if err := c.do(ctx, http.MethodPost, "/register", body, "application/x-www-form-urlencoded", nil); err != nil {
		return fmt.Errorf("register %s: %w", username, err)
	}
	return nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/logout", struct{}{}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// ListConversations returns the conversations of the logged-in user.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out conversationList
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations/", nil, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out.Conversations, nil
}

// CreateConversation asks the server to create a conversation with members.
func (c *Client) CreateConversation(ctx context.Context, members []string) (*Conversation, error) {
	var out Conversation
	payload := map[string][]string{"members": members}
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations/", payload, &out); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &out, nil
}

// ListMessages returns the messages of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, id uuid.UUID) ([]Message, error) {
	var out messageList
	if err := c.doJSON(ctx, http.MethodGet, conversationPath(id, "messages"), nil, &out); err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", id, err)
	}
	return out.Messages, nil
}

// SendMessage posts text to a conversation.
func (c *Client) SendMessage(ctx context.Context, id uuid.UUID, text string) (*Message, error) {
	var out Message
	payload := map[string]string{"text": text}
	if err := c.doJSON(ctx, http.MethodPost, conversationPath(id, "messages"), payload, &out); err != nil {
		return nil, fmt.Errorf("send message to %s: %w", id, err)
	}
	out.Text = text
	return &out, nil
}

// SetAutodestruct schedules the conversation to self-destruct after minutes.
func (c *Client) SetAutodestruct(ctx context.Context, id uuid.UUID, minutes int) (*Autodestruct, error) {
	var out Autodestruct
	payload := map[string]int{"delay_minutes": minutes}
	if err := c.doJSON(ctx, http.MethodPost, conversationPath(id, "autodestruct"), payload, &out); err != nil {
		return nil, fmt.Errorf("set autodestruct of %s: %w", id, err)
	}
	return &out, nil
}

func conversationPath(id uuid.UUID, leaf string) string {
	return "/api/conversations/" + id.String() + "/" + leaf + "/"
}

// CSRFToken returns the csrftoken cookie currently held for the server.
func (c *Client) CSRFToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "fetch")
	if token := c.CSRFToken(); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
