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

const wcCustomersPath = "/wp-json/wc/v3/customers"

// WooCommerceClient talks to the WooCommerce customers REST API using
// consumer-key authentication.
type WooCommerceClient struct {
	rest restClient
}

// NewWooCommerceClient creates a client for the customer store.
func NewWooCommerceClient(cfg *config.WooCommerceConfig, log zerolog.Logger) *WooCommerceClient {
	return &WooCommerceClient{
		rest: newRESTClient("woocommerce", cfg.SiteURL, cfg.ConsumerKey, cfg.ConsumerSecret, log),
	}
}

func (c *WooCommerceClient) Platform() string { return "woocommerce" }

type wcCustomer struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type wcAddress struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type wcMetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// wcCustomerPayload is the create/update request body. Updates leave
// Email, Username and Password empty.
type wcCustomerPayload struct {
	Email     string        `json:"email,omitempty"`
	FirstName string        `json:"first_name,omitempty"`
	LastName  string        `json:"last_name,omitempty"`
	Username  string        `json:"username,omitempty"`
	Password  string        `json:"password,omitempty"`
	Billing   *wcAddress    `json:"billing,omitempty"`
	Shipping  *wcAddress    `json:"shipping,omitempty"`
	MetaData  []wcMetaEntry `json:"meta_data,omitempty"`
}

// FindByEmail filters customers by email. WooCommerce does an exact
// filter but we still match case-insensitively before trusting the hit.
func (c *WooCommerceClient) FindByEmail(ctx context.Context, email string) (*Record, error) {
	query := url.Values{}
	query.Set("email", email)

	var customers []wcCustomer
	if err := c.rest.do(ctx, http.MethodGet, wcCustomersPath, query, nil, &customers); err != nil {
		return nil, &LookupError{Platform: c.Platform(), Err: err}
	}

	for _, cust := range customers {
		if strings.EqualFold(cust.Email, email) {
			return &Record{ID: cust.ID, Email: cust.Email, Username: cust.Username}, nil
		}
	}
	return nil, nil
}

// Create registers a new customer with full billing/shipping blocks and
// the flattened meta_data list.
func (c *WooCommerceClient) Create(ctx context.Context, row *models.ImportRow, usernameOverride string) (*Record, error) {
	username := usernameOverride
	if username == "" {
		username = row.UsernameBase()
	}
	password := row.Password
	if password == "" {
		password = randomPassword()
	}

	payload := wcCustomerPayload{
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Username:  username,
		Password:  password,
		Billing:   buildWCAddress(row.Billing, true),
		Shipping:  buildWCAddress(row.Shipping, false),
		MetaData:  buildCustomerMeta(row),
	}

	var created wcCustomer
	if err := c.rest.do(ctx, http.MethodPost, wcCustomersPath, nil, payload, &created); err != nil {
		return nil, err
	}
	return &Record{ID: created.ID, Email: row.Email, Username: username}, nil
}

// Update overwrites names, addresses and meta. Login credentials are
// never replayed on update.
func (c *WooCommerceClient) Update(ctx context.Context, id int, row *models.ImportRow) (*Record, error) {
	payload := wcCustomerPayload{
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Billing:   buildWCAddress(row.Billing, true),
		Shipping:  buildWCAddress(row.Shipping, false),
		MetaData:  buildCustomerMeta(row),
	}

	var updated wcCustomer
	path := fmt.Sprintf("%s/%d", wcCustomersPath, id)
	if err := c.rest.do(ctx, http.MethodPut, path, nil, payload, &updated); err != nil {
		return nil, err
	}
	return &Record{ID: id, Email: row.Email}, nil
}

// buildWCAddress maps a row address onto the WooCommerce block. Shipping
// blocks carry no email or phone; the API ignores them there.
func buildWCAddress(addr *models.Address, withContact bool) *wcAddress {
	if addr == nil {
		return nil
	}
	out := &wcAddress{
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Company:   addr.Company,
		Address1:  addr.Address1,
		Address2:  addr.Address2,
		City:      addr.City,
		State:     addr.State,
		Postcode:  addr.Postcode,
		Country:   addr.Country,
	}
	if withContact {
		out.Email = addr.Email
		out.Phone = addr.Phone
	}
	return out
}

// buildCustomerMeta assembles the meta_data list: the membership-plugin
// bootstrap entries first, the mirrored member role, then free-form meta.
func buildCustomerMeta(row *models.ImportRow) []wcMetaEntry {
	meta := []wcMetaEntry{
		{Key: "account_status", Value: "approved"},
		{Key: "um_member_directory_data", Value: "a:0:{}"},
	}
	if row.MemberRole != "" {
		meta = append(meta,
			wcMetaEntry{Key: "um_role", Value: row.MemberRole},
			wcMetaEntry{Key: "role", Value: row.MemberRole},
		)
	}
	for k, v := range row.Meta {
		meta = append(meta, wcMetaEntry{Key: k, Value: stringifyMetaValue(v)})
	}
	return meta
}
