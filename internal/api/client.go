// Package api is the client for the product backend: device registration,
// the remote message archive and per-user notification settings. The
// white-label branding endpoint lives on a separate base URL with its own
// static bearer.
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
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pushdeck/agent/internal/kv"
	"github.com/pushdeck/agent/internal/model"
)

const requestTimeout = 15 * time.Second

// registerSuccessMessage is the backend's literal success sentinel for
// POST /user/create. The backend signals success through this exact message
// string, not through the status code alone.
const registerSuccessMessage = "Usuário criado com sucesso"

var (
	// ErrTokenExpired: the backend rejected the stored bearer token. The
	// user has to log in again.
	ErrTokenExpired = errors.New("token invalid or expired, log in again")
	// ErrNoToken: no bearer token is on record yet.
	ErrNoToken = errors.New("no auth token on record, log in first")
)

// Client talks to the product backend. The bearer token issued at
// registration is persisted in the kv store and attached to every
// authenticated call.
type Client struct {
	baseURL       string
	companyURL    string
	companyBearer string
	store         kv.Store
	client        *http.Client
}

// New creates a backend client. companyURL/companyBearer address the
// white-label branding endpoint and may be empty when the deployment has no
// tenant backend.
func New(baseURL, companyURL, companyBearer string, store kv.Store) *Client {
	return &Client{
		baseURL:       baseURL,
		companyURL:    companyURL,
		companyBearer: companyBearer,
		store:         store,
		client:        &http.Client{Timeout: requestTimeout},
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	DeviceID  string `json:"device_id"`
	CompanyID string `json:"companyId,omitempty"`
}

type registerResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Register binds (email, device id) to a backend user record. Success is
// detected by the backend's exact message sentinel; the returned bearer
// token is persisted for later calls.
func (c *Client) Register(ctx context.Context, email, deviceID, companyID string) error {
	body := registerRequest{Email: email, DeviceID: deviceID, CompanyID: companyID}
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/user/create", body, false)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	defer resp.Body.Close()

	var res registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("register device: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register device: backend returned %d: %s", resp.StatusCode, res.Message)
	}
	if res.Message != registerSuccessMessage {
		return fmt.Errorf("register device: unexpected backend response %q", res.Message)
	}
	if res.Token == "" {
		return fmt.Errorf("register device: backend returned no token")
	}

	if err := c.store.Set(ctx, kv.KeyToken, res.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// TokenExpiry reads the expiry claim of the stored bearer token without
// verifying its signature. Callers use it to prompt re-login before the
// backend starts answering 401.
func (c *Client) TokenExpiry(ctx context.Context) (time.Time, error) {
	token, err := c.store.Get(ctx, kv.KeyToken)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return time.Time{}, ErrNoToken
		}
		return time.Time{}, fmt.Errorf("read token: %w", err)
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token has no expiry claim")
	}
	return claims.ExpiresAt.Time, nil
}

// RemoteMessage is one entry of the backend's message archive.
type RemoteMessage struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Read    bool   `json:"readed"`
	Date    string `json:"date"`
}

type messagesResponse struct {
	Messages []RemoteMessage `json:"messages"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
}

// Messages fetches one page of the remote archive for the date range
// [start, end], both formatted as the backend expects (YYYY-MM-DD).
func (c *Client) Messages(ctx context.Context, email, start, end string, page int) ([]RemoteMessage, error) {
	endpoint := fmt.Sprintf("%s/messages/list/%s/%s/%s/%d",
		c.baseURL, url.PathEscape(email), start, end, page)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, true)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var res messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("list messages: decode response: %w", err)
	}
	return res.Messages, nil
}

// MarkMessageRead flags a message as read in the remote archive.
func (c *Client) MarkMessageRead(ctx context.Context, id string) error {
	body := map[string]any{"id": id, "readed": true}
	resp, err := c.do(ctx, http.MethodPut, c.baseURL+"/messages/update/"+url.PathEscape(id), body, true)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

// Settings fetches the user's notification-category preferences.
func (c *Client) Settings(ctx context.Context, email string) (model.NotificationSettings, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/user/settings/"+url.PathEscape(email), nil, true)
	if err != nil {
		return model.NotificationSettings{}, fmt.Errorf("get settings: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return model.NotificationSettings{}, fmt.Errorf("get settings: %w", err)
	}

	var settings model.NotificationSettings
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return model.NotificationSettings{}, fmt.Errorf("get settings: decode response: %w", err)
	}
	return settings, nil
}

// SaveSettings stores the user's notification-category preferences.
func (c *Client) SaveSettings(ctx context.Context, email string, settings model.NotificationSettings) error {
	resp, err := c.do(ctx, http.MethodPut, c.baseURL+"/user/settings/"+url.PathEscape(email), settings, true)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

type companyResponse struct {
	Company model.Company `json:"company"`
}

// Company fetches the white-label tenant record from the branding backend.
func (c *Client) Company(ctx context.Context) (model.Company, error) {
	if c.companyURL == "" {
		return model.Company{}, fmt.Errorf("no company endpoint configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.companyURL, nil)
	if err != nil {
		return model.Company{}, fmt.Errorf("get company: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.companyBearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Company{}, fmt.Errorf("get company: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Company{}, fmt.Errorf("get company: backend returned %d", resp.StatusCode)
	}

	var res companyResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return model.Company{}, fmt.Errorf("get company: decode response: %w", err)
	}
	return res.Company, nil
}

// do builds and sends a request, attaching the stored bearer token when
// authed is set.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, authed bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authed {
		token, err := c.store.Get(ctx, kv.KeyToken)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return nil, ErrNoToken
			}
			return nil, fmt.Errorf("read token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.client.Do(req)
}

// checkStatus maps non-2xx responses to errors, with 401 surfaced as
// ErrTokenExpired.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrTokenExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var res struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &res) == nil && res.Message != "" {
			return fmt.Errorf("backend returned %d: %s", resp.StatusCode, res.Message)
		}
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return nil
}
