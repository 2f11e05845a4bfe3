package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// ProbeStatus finds the status token in a backend response. Responses carry it
// at data.status, status or data.transaction.status, tried in that order.
func ProbeStatus(doc map[string]any) string {
	data, _ := doc["data"].(map[string]any)
	if s := stringAt(data, "status"); s != "" {
		return s
	}
	if s := stringAt(doc, "status"); s != "" {
		return s
	}
	txn, _ := data["transaction"].(map[string]any)
	return stringAt(txn, "status")
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func decodeDocument(body []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode backend response: %w", err)
	}
	return doc, nil
}

// ParseStatusResponse normalizes a transaction-status response. success=false
// or a missing status yields an unknown result.
func ParseStatusResponse(body []byte) (*checkout.StatusResult, error) {
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}

	res := &checkout.StatusResult{Raw: doc}
	if ok, present := doc["success"].(bool); present && !ok {
		return res, nil
	}
	raw := ProbeStatus(doc)
	if raw == "" {
		return res, nil
	}

	res.Known = true
	res.RawStatus = raw
	res.Status = transaction.ParseStatus(raw)
	res.Accounts = accountsOf(doc)
	return res, nil
}

func accountsOf(doc map[string]any) []map[string]any {
	data, _ := doc["data"].(map[string]any)
	list, _ := data["accounts"].([]any)
	if list == nil {
		list, _ = doc["accounts"].([]any)
	}
	var out []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// ParseConfirmResponse normalizes a confirm response.
func ParseConfirmResponse(body []byte) (*checkout.ConfirmResult, error) {
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	raw := ProbeStatus(doc)
	return &checkout.ConfirmResult{
		Confirmed: transaction.IsSuccessToken(raw),
		RawStatus: raw,
		Raw:       doc,
	}, nil
}
