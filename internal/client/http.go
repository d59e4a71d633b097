package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/facepin/kiosk/internal/session"
)

// ErrSubmitRejected is returned when the backend refuses an enrollment.
var ErrSubmitRejected = errors.New("submission rejected")

const (
	defaultHTTPTimeout = 10 * time.Second
	maxBodyBytes       = 1 << 20
)

// HTTPClient makes the one-shot requests to the kiosk backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:5000").
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL derives the HTTP origin serving a channel URL:
// ws://host:5000/ws becomes http://host:5000.
func BaseURL(channelURL string) (string, error) {
	u, err := url.Parse(channelURL)
	if err != nil {
		return "", fmt.Errorf("parse channel url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("channel url %q: unsupported scheme %q", channelURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("channel url %q: missing host", channelURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

type addUserResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AddUser posts an enrollment to /add_user and returns the backend's
// confirmation message. A non-2xx status or success:false wraps
// ErrSubmitRejected with the backend's message.
func (c *HTTPClient) AddUser(ctx context.Context, e session.Enrollment) (string, error) {
	form := url.Values{
		"username":   {e.Username},
		"pin":        {e.PIN},
		"balance":    {e.Balance},
		"image_path": {e.ImagePath},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/add_user", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST /add_user: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("POST /add_user: read body: %w", err)
	}

	var out addUserResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode >= 300 {
		msg := out.Message
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("server returned %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%w: %s", ErrSubmitRejected, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("POST /add_user: decode response: %w", decodeErr)
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("%w: %s", ErrSubmitRejected, msg)
	}
	return out.Message, nil
}

// RejectionMessage returns the backend's text from a rejection error.
func RejectionMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, ErrSubmitRejected) {
		if i := strings.Index(msg, ErrSubmitRejected.Error()+": "); i >= 0 {
			return msg[i+len(ErrSubmitRejected.Error())+2:]
		}
	}
	return msg
}
