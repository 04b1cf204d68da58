package models

import "strings"

// Address holds one postal address from the source file. Every field is
// optional; empty strings are omitted from remote payloads.
type Address struct {
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

// ImportRow is the canonical in-memory form of one record to import.
// Email is the sole correlation key against the remote platforms and is
// lower-cased and trimmed before the row reaches the upsert engine.
type ImportRow struct {
	Email      string                 `json:"email"`
	Username   string                 `json:"username,omitempty"`
	Password   string                 `json:"password,omitempty"`
	FirstName  string                 `json:"first_name,omitempty"`
	LastName   string                 `json:"last_name,omitempty"`
	Roles      []string               `json:"roles,omitempty"`
	MemberRole string                 `json:"member_role,omitempty"` // membership-plugin role slug
	Meta       map[string]interface{} `json:"meta,omitempty"`
	Billing    *Address               `json:"billing,omitempty"`
	Shipping   *Address               `json:"shipping,omitempty"`
}

// DefaultRole is assigned when a row carries no roles.
const DefaultRole = "customer"

// Normalize lowercases and trims the email and applies the default role.
func (r *ImportRow) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if len(r.Roles) == 0 {
		r.Roles = []string{DefaultRole}
	}
}

// DisplayName joins first and last name for the remote profile.
func (r *ImportRow) DisplayName() string {
	parts := make([]string, 0, 2)
	if r.FirstName != "" {
		parts = append(parts, r.FirstName)
	}
	if r.LastName != "" {
		parts = append(parts, r.LastName)
	}
	return strings.Join(parts, " ")
}

// UsernameBase returns the deterministic base used for generated usernames:
// the explicit username when present, otherwise the email local part.
func (r *ImportRow) UsernameBase() string {
	if r.Username != "" {
		return r.Username
	}
	if at := strings.IndexByte(r.Email, '@'); at > 0 {
		return r.Email[:at]
	}
	return "user"
}
