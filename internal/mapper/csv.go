// Package mapper turns CSV files and JSON row arrays into normalized
// import rows. Two CSV layouts are understood: the ERP customer export
// ("invoiceAddress - *" / "deliveryAddress - *" columns) and the simple
// layout with one column per row field.
package mapper

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/customer-import-api/internal/models"
)

// ErrNoRows means the file parsed fine but contained no importable rows.
var ErrNoRows = errors.New("no importable rows found")

// ParsedRow pairs a mapped row with its source line number so validation
// failures can point back into the file.
type ParsedRow struct {
	Row  models.ImportRow
	Line int
}

// localeMap translates source language codes into platform locales.
var localeMap = map[string]string{
	"sv":    "sv_SE",
	"en":    "en_US",
	"sv_SE": "sv_SE",
	"en_US": "en_US",
}

// LoadCSV reads and maps an import file from disk.
func LoadCSV(path string) ([]ParsedRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()
	return ParseCSV(file)
}

// ParseCSV maps header-keyed CSV content into import rows. Rows without
// an email cannot be reconciled and are skipped.
func ParseCSV(r io.Reader) ([]ParsedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	headerMap := make(map[string]int, len(header))
	for i, h := range header {
		headerMap[strings.ToLower(strings.TrimSpace(h))] = i
	}
	erpLayout := false
	for key := range headerMap {
		if strings.HasPrefix(key, "invoiceaddress -") {
			erpLayout = true
			break
		}
	}

	var rows []ParsedRow
	line := 1 // header
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		line++

		var row models.ImportRow
		if erpLayout {
			row = mapERPRow(record, headerMap)
		} else {
			row = mapSimpleRow(record, headerMap)
		}
		if row.Email == "" {
			continue
		}
		row.Normalize()
		rows = append(rows, ParsedRow{Row: row, Line: line})
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// NormalizeRows prepares JSON-submitted rows for the engine.
func NormalizeRows(rows []models.ImportRow) []models.ImportRow {
	for i := range rows {
		rows[i].Normalize()
	}
	return rows
}

// mapERPRow maps one line of the ERP customer export. Billing comes from
// the invoice address, shipping from the delivery address, falling back
// to a copy of billing when no delivery name is present.
func mapERPRow(record []string, headerMap map[string]int) models.ImportRow {
	get := func(field string) string { return getField(record, headerMap, field) }

	email := strings.ToLower(strings.TrimSpace(get("email")))
	row := models.ImportRow{
		Email:     email,
		FirstName: get("invoiceaddress - firstname"),
		LastName:  get("invoiceaddress - lastname"),
		Username:  get("username"),
		Roles:     []string{models.DefaultRole},
		Meta:      map[string]interface{}{},
	}

	billing := &models.Address{
		FirstName: get("invoiceaddress - firstname"),
		LastName:  get("invoiceaddress - lastname"),
		Company:   get("invoiceaddress - companyname"),
		Address1:  get("invoiceaddress - address"),
		City:      get("invoiceaddress - city"),
		State:     get("invoiceaddress - state"),
		Postcode:  get("invoiceaddress - postalcode"),
		Country:   get("invoiceaddress - countrycode"),
		Phone:     get("invoiceaddress - phoneno"),
		Email:     email,
	}
	row.Billing = billing

	if get("deliveryaddress - firstname") == "" && get("deliveryaddress - lastname") == "" {
		copied := *billing
		copied.Email = ""
		copied.Phone = ""
		row.Shipping = &copied
	} else {
		row.Shipping = &models.Address{
			FirstName: get("deliveryaddress - firstname"),
			LastName:  get("deliveryaddress - lastname"),
			Company:   get("deliveryaddress - companyname"),
			Address1:  get("deliveryaddress - address"),
			City:      get("deliveryaddress - city"),
			State:     get("deliveryaddress - state"),
			Postcode:  get("deliveryaddress - postalcode"),
			Country:   get("deliveryaddress - countrycode"),
			Phone:     get("deliveryaddress - phoneno"),
		}
	}

	if v := get("nationalidno"); v != "" {
		row.Meta["national_id"] = v
	}
	if v := get("langcode"); v != "" {
		locale, ok := localeMap[v]
		if !ok {
			locale = "en_US"
		}
		row.Meta["locale"] = locale
	}
	if v := get("tags"); v != "" {
		row.Meta["customer_tags"] = v
	}
	if v := get("pricelist"); v != "" {
		row.Meta["pricelist"] = v
	}

	erpMetaFields := map[string]string{
		"invoiceaddress - careof":         "billing_care_of",
		"invoiceaddress - attention":      "billing_attention",
		"invoiceaddress - reference":      "billing_reference",
		"invoiceaddress - mobilephoneno":  "billing_mobile_phone",
		"deliveryaddress - careof":        "shipping_care_of",
		"deliveryaddress - attention":     "shipping_attention",
		"deliveryaddress - reference":     "shipping_reference",
		"deliveryaddress - mobilephoneno": "shipping_mobile_phone",
	}
	for column, metaKey := range erpMetaFields {
		if v := get(column); v != "" {
			row.Meta[metaKey] = v
		}
	}
	if len(row.Meta) == 0 {
		row.Meta = nil
	}
	return row
}

// mapSimpleRow maps the one-column-per-field layout. Roles are
// pipe-separated; meta and addresses may be embedded as JSON objects.
func mapSimpleRow(record []string, headerMap map[string]int) models.ImportRow {
	get := func(field string) string { return getField(record, headerMap, field) }

	row := models.ImportRow{
		Email:      get("email"),
		Username:   get("username"),
		Password:   get("password"),
		FirstName:  get("first_name"),
		LastName:   get("last_name"),
		MemberRole: get("member_role"),
	}
	if row.MemberRole == "" {
		row.MemberRole = get("um_role")
	}
	if v := get("roles"); v != "" {
		for _, role := range strings.Split(v, "|") {
			if role = strings.TrimSpace(role); role != "" {
				row.Roles = append(row.Roles, role)
			}
		}
	}
	if v := get("meta"); v != "" {
		var meta map[string]interface{}
		if json.Unmarshal([]byte(v), &meta) == nil {
			row.Meta = meta
		}
	}
	row.Billing = parseAddress(get("billing"), get("wc_billing"))
	row.Shipping = parseAddress(get("shipping"), get("wc_shipping"))
	return row
}

// parseAddress decodes an embedded JSON address from whichever column is
// populated.
func parseAddress(values ...string) *models.Address {
	for _, v := range values {
		if v == "" {
			continue
		}
		var addr models.Address
		if json.Unmarshal([]byte(v), &addr) == nil {
			return &addr
		}
	}
	return nil
}

func getField(record []string, headerMap map[string]int, field string) string {
	if idx, ok := headerMap[field]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
