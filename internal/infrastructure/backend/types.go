package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// Backend action names
const (
	ActionGetInitialData     = "getInitialData"
	ActionGetItemsByCategory = "getItemsByCategory"
	ActionSubmitOrder        = "submitOrder"
	ActionGetLineLoginURL    = "getLineLoginUrl"
)

// Response is the envelope every backend reply carries
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *Response) IsSuccess() bool {
	return r.Success
}

// InitialDataResponse is the response for getInitialData
type InitialDataResponse struct {
	Response
	Categories   []catalog.Category `json:"categories"`
	CustomerName flexString         `json:"customerName,omitempty"`
}

// ItemsResponse is the response for getItemsByCategory
type ItemsResponse struct {
	Response
	Items []Item `json:"items"`
}

// LoginURLResponse is the response for getLineLoginUrl
type LoginURLResponse struct {
	Response
	URL string `json:"url"`
}

// Item is a catalog row as the spreadsheet returns it. Cells may come back as
// numbers or strings, and an empty price cell as "".
type Item struct {
	Item     flexString      `json:"item"`
	Unit     flexString      `json:"unit,omitempty"`
	Price    json.RawMessage `json:"price,omitempty"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

// ToCatalogItem converts the row to a domain item
func (i Item) ToCatalogItem() catalog.CatalogItem {
	return catalog.CatalogItem{
		Item:     strings.TrimSpace(string(i.Item)),
		Unit:     strings.TrimSpace(string(i.Unit)),
		Price:    parsePrice(i.Price),
		ImageURL: strings.TrimSpace(i.ImageURL),
	}
}

// InitialDataProfile is the identity sent along with getInitialData
type InitialDataProfile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// flexString decodes a JSON string, number or null into a string
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*s = flexString(n.String())
	}
	return nil
}

// parsePrice reads a price cell. Missing, empty or unparsable prices are 0;
// thousands separators and a leading currency label are tolerated.
func parsePrice(raw json.RawMessage) decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "NT$")
	text = strings.TrimPrefix(text, "$")
	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero
	}

	p, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return catalog.NormalizePrice(p)
}
