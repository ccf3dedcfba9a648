// Package backend is the HTTP client for the coaching backend REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/goalprobe/internal/model/consultation"
	"github.com/zhouzirui/goalprobe/internal/model/goal"
)

// Header names understood by the backend.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"
)

// bodyPreviewLimit bounds how much of an error body ends up in a StatusError.
const bodyPreviewLimit = 200

// StatusError reports an unexpected HTTP status from the backend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Body)
}

// ErrEmptyToken is returned when login succeeds without an access token.
var ErrEmptyToken = errors.New("login response carried no access token")

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means no client-side timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginData struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if status != http.StatusOK {
		return "", newStatusError("login", status, body)
	}

	var data loginData
	if err := decodeData(body, &data); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if data.AccessToken == "" {
		return "", ErrEmptyToken
	}
	return data.AccessToken, nil
}

// CreateGoal posts a goal and returns the stored record.
// Both {data: {goal: {...}}} and {data: {...}} envelopes are accepted.
func (c *Client) CreateGoal(ctx context.Context, token string, g goal.Goal) (goal.Goal, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/goals", token, g)
	if err != nil {
		return goal.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	if status != http.StatusCreated {
		return goal.Goal{}, newStatusError("create goal", status, body)
	}

	created, err := decodeGoal(body)
	if err != nil {
		return goal.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	if created.ID == "" {
		return goal.Goal{}, fmt.Errorf("create goal: response carried no goal id")
	}
	return created, nil
}

// DeleteGoal removes a goal. Anything but 204 is reported as an error.
func (c *Client) DeleteGoal(ctx context.Context, token, id string) error {
	return c.deleteResource(ctx, "delete goal", "/api/v1/goals/"+url.PathEscape(id), token)
}

// ListConsultations lists consultations, optionally filtered by status.
func (c *Client) ListConsultations(ctx context.Context, token, status string) ([]consultation.Consultation, error) {
	path := "/api/v1/consultations"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	code, body, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	if code != http.StatusOK {
		return nil, newStatusError("list consultations", code, body)
	}

	var data struct {
		Consultations []consultation.Consultation `json:"consultations"`
	}
	if err := decodeData(body, &data); err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return data.Consultations, nil
}

// CreateConsultation opens a consultation for persona bound to the given context reference.
func (c *Client) CreateConsultation(ctx context.Context, token string, req consultation.CreateRequest) (consultation.Consultation, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/consultations", token, req)
	if err != nil {
		return consultation.Consultation{}, fmt.Errorf("create consultation: %w", err)
	}
	if status != http.StatusCreated {
		return consultation.Consultation{}, newStatusError("create consultation", status, body)
	}

	var data struct {
		Consultation *consultation.Consultation `json:"consultation"`
	}
	if err := decodeData(body, &data); err != nil {
		return consultation.Consultation{}, fmt.Errorf("create consultation: %w", err)
	}
	if data.Consultation == nil || data.Consultation.ID == "" {
		return consultation.Consultation{}, fmt.Errorf("create consultation: response carried no consultation id")
	}
	return *data.Consultation, nil
}

// DeleteConsultation removes a consultation. Anything but 204 is reported as an error.
func (c *Client) DeleteConsultation(ctx context.Context, token, id string) error {
	return c.deleteResource(ctx, "delete consultation", "/api/v1/consultations/"+url.PathEscape(id), token)
}

func (c *Client) deleteResource(ctx context.Context, op, path, token string) error {
	status, body, err := c.do(ctx, http.MethodDelete, path, token, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if status != http.StatusNoContent {
		return newStatusError(op, status, body)
	}
	return nil
}

// AuthHeader builds the headers every authenticated call carries.
func AuthHeader(apiKey, token string) http.Header {
	h := http.Header{}
	if apiKey != "" {
		h.Set(HeaderAPIKey, apiKey)
	}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range AuthHeader(c.apiKey, token) {
		req.Header[key] = values
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decodeData(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal response: %w (body: %s)", err, preview(body))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("response has no data field (body: %s)", preview(body))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

func decodeGoal(body []byte) (goal.Goal, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return goal.Goal{}, fmt.Errorf("unmarshal response: %w (body: %s)", err, preview(body))
	}

	raw := json.RawMessage(body)
	if len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
		var nested struct {
			Goal json.RawMessage `json:"goal"`
		}
		if err := json.Unmarshal(env.Data, &nested); err == nil && len(nested.Goal) > 0 && string(nested.Goal) != "null" {
			raw = nested.Goal
		}
	}

	var g goal.Goal
	if err := json.Unmarshal(raw, &g); err != nil {
		return goal.Goal{}, fmt.Errorf("unmarshal goal: %w", err)
	}
	return g, nil
}

func newStatusError(op string, status int, body []byte) *StatusError {
	return &StatusError{Op: op, Status: status, Body: preview(body)}
}

func preview(body []byte) string {
	text := string(body)
	runes := []rune(text)
	if len(runes) > bodyPreviewLimit {
		return string(runes[:bodyPreviewLimit])
	}
	return text
}
