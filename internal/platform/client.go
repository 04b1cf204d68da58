package platform

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/customer-import-api/internal/models"
	"github.com/rs/zerolog"
)

// Record is the minimal view of a remote user/customer the engine needs:
// the remote-assigned identifier plus the echoed email.
type Record struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// RecordClient is the contract the upsert engine consumes. Both remote
// platforms implement it. FindByEmail returns (nil, nil) when no record
// matches; a missing record is never an error.
type RecordClient interface {
	Platform() string
	FindByEmail(ctx context.Context, email string) (*Record, error)
	Create(ctx context.Context, row *models.ImportRow, usernameOverride string) (*Record, error)
	Update(ctx context.Context, id int, row *models.ImportRow) (*Record, error)
}

// usernameConflictCodes maps remote error codes that signal a username
// collision on create. These are the only retryable create failures.
var usernameConflictCodes = map[string]bool{
	"existing_user_login":                true, // WordPress
	"registration-error-username-exists": true, // WooCommerce
}

// restClient is the shared HTTP plumbing for both platform clients.
type restClient struct {
	platform   string
	baseURL    string
	authHeader string
	httpClient *http.Client
	log        zerolog.Logger
}

func newRESTClient(platform, siteURL, user, secret string, log zerolog.Logger) restClient {
	return restClient{
		platform:   platform,
		baseURL:    strings.TrimRight(siteURL, "/"),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+secret)),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("client", platform).Logger(),
	}
}

// apiError is the error envelope both platforms return on rejection.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do issues one JSON request. Non-2xx responses become ConflictError for
// known username-collision codes and RemoteError for everything else.
func (c *restClient) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &RemoteError{Platform: c.platform, Body: fmt.Sprintf("encode payload: %v", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &RemoteError{Platform: c.platform, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Platform: c.platform, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Platform: c.platform, Status: resp.StatusCode, Body: err.Error()}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Remote call completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && usernameConflictCodes[apiErr.Code] {
			return &ConflictError{Reason: ConflictReasonUsername}
		}
		return &RemoteError{
			Platform: c.platform,
			Status:   resp.StatusCode,
			Body:     truncate(strings.TrimSpace(string(respBody)), 512),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &RemoteError{Platform: c.platform, Status: resp.StatusCode, Body: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// randomPassword generates a throwaway password for rows that carry none.
// The remote platform handles password resets; this value is never reused.
func randomPassword() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "imported-" + fmt.Sprint(time.Now().UnixNano())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// stringifyMetaValue renders a free-form meta value the way the remote
// stores it: numbers without a trailing ".0", bools as true/false.
func stringifyMetaValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
