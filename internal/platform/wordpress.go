package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/models"
	"github.com/rs/zerolog"
)

const wpUsersPath = "/wp-json/wp/v2/users"

// WordPressClient talks to the WordPress core users REST API using an
// application password.
type WordPressClient struct {
	rest restClient
}

// NewWordPressClient creates a client for the user store.
func NewWordPressClient(cfg *config.WordPressConfig, log zerolog.Logger) *WordPressClient {
	return &WordPressClient{
		rest: newRESTClient("wordpress", cfg.SiteURL, cfg.User, cfg.AppPassword, log),
	}
}

func (c *WordPressClient) Platform() string { return "wordpress" }

// wpUser is the subset of the WordPress user resource we read back.
// Email and username are only present with context=edit.
type wpUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// wpUserPayload is the create/update request body. Update leaves
// Username and Email empty; WordPress rejects changing the login name.
type wpUserPayload struct {
	Username string            `json:"username,omitempty"`
	Email    string            `json:"email,omitempty"`
	Password string            `json:"password,omitempty"`
	Name     string            `json:"name,omitempty"`
	Roles    []string          `json:"roles,omitempty"`
	Locale   string            `json:"locale,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// FindByEmail searches the user store and matches the email
// case-insensitively; the search endpoint also matches partial hits on
// other fields, so the filter here is what decides existence.
func (c *WordPressClient) FindByEmail(ctx context.Context, email string) (*Record, error) {
	query := url.Values{}
	query.Set("search", email)
	query.Set("context", "edit")

	var users []wpUser
	if err := c.rest.do(ctx, http.MethodGet, wpUsersPath, query, nil, &users); err != nil {
		return nil, &LookupError{Platform: c.Platform(), Err: err}
	}

	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return &Record{ID: u.ID, Email: u.Email, Username: u.Username}, nil
		}
	}
	return nil, nil
}

// Create registers a new user. usernameOverride replaces the derived base
// username on conflict retries.
func (c *WordPressClient) Create(ctx context.Context, row *models.ImportRow, usernameOverride string) (*Record, error) {
	username := usernameOverride
	if username == "" {
		username = row.UsernameBase()
	}
	password := row.Password
	if password == "" {
		password = randomPassword()
	}

	payload := wpUserPayload{
		Username: username,
		Email:    row.Email,
		Password: password,
		Name:     row.DisplayName(),
		Roles:    row.Roles,
		Locale:   localeFromMeta(row),
		Meta:     buildUserMeta(row),
	}

	var created wpUser
	if err := c.rest.do(ctx, http.MethodPost, wpUsersPath, nil, payload, &created); err != nil {
		return nil, err
	}
	return &Record{ID: created.ID, Email: row.Email, Username: username}, nil
}

// Update overwrites profile fields, roles and meta on an existing user.
// The password is only touched when the row carries one.
func (c *WordPressClient) Update(ctx context.Context, id int, row *models.ImportRow) (*Record, error) {
	payload := wpUserPayload{
		Name:     row.DisplayName(),
		Roles:    row.Roles,
		Password: row.Password,
		Locale:   localeFromMeta(row),
		Meta:     buildUserMeta(row),
	}

	var updated wpUser
	path := fmt.Sprintf("%s/%d", wpUsersPath, id)
	if err := c.rest.do(ctx, http.MethodPost, path, nil, payload, &updated); err != nil {
		return nil, err
	}
	return &Record{ID: id, Email: row.Email}, nil
}

// buildUserMeta flattens the row into WordPress user meta: profile names,
// the membership-plugin role key, free-form attributes, and both addresses
// under billing_/shipping_ prefixes.
func buildUserMeta(row *models.ImportRow) map[string]string {
	meta := map[string]string{
		"first_name": row.FirstName,
		"last_name":  row.LastName,
	}
	if row.MemberRole != "" {
		meta["um_role"] = row.MemberRole
	}
	for k, v := range row.Meta {
		meta[k] = stringifyMetaValue(v)
	}
	flattenAddress(meta, "billing_", row.Billing)
	flattenAddress(meta, "shipping_", row.Shipping)
	return meta
}

func flattenAddress(meta map[string]string, prefix string, addr *models.Address) {
	if addr == nil {
		return
	}
	fields := map[string]string{
		"first_name": addr.FirstName,
		"last_name":  addr.LastName,
		"company":    addr.Company,
		"address_1":  addr.Address1,
		"address_2":  addr.Address2,
		"city":       addr.City,
		"state":      addr.State,
		"postcode":   addr.Postcode,
		"country":    addr.Country,
		"email":      addr.Email,
		"phone":      addr.Phone,
	}
	for k, v := range fields {
		if v != "" {
			meta[prefix+k] = v
		}
	}
}

// localeFromMeta promotes meta["locale"] to the user's profile locale.
func localeFromMeta(row *models.ImportRow) string {
	if v, ok := row.Meta["locale"].(string); ok {
		return v
	}
	return ""
}
