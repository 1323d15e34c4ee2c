package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/receipt-keeper/internal/models"
)

// dateLayouts are tried in order when the model ignores the requested
// format.
var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// parseReceiptJSON extracts the first JSON object from a model reply and
// checks it has what a receipt needs.
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")

	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var data ReceiptData
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.StoreName = strings.TrimSpace(data.StoreName)
	if data.StoreName == "" {
		return nil, fmt.Errorf("%w: no store name", ErrIncompleteScan)
	}
	if !data.TotalAmount.Valid {
		return nil, fmt.Errorf("%w: no total", ErrIncompleteScan)
	}

	category := strings.TrimSpace(data.Category)
	if category == "" {
		return nil, fmt.Errorf("%w: no category", ErrIncompleteScan)
	}
	if parsed, err := models.ParseCategory(category); err == nil {
		data.Category = string(parsed)
	} else {
		data.Category = string(models.CategoryOther)
	}

	date, err := parseDate(data.Date)
	if err != nil {
		return nil, err
	}
	data.Date = date

	data.Currency = strings.TrimSpace(data.Currency)
	if data.Currency == "" {
		data.Currency = DefaultCurrency
	}
	data.Website = strings.TrimSpace(data.Website)
	data.BarcodeValue = strings.TrimSpace(data.BarcodeValue)
	data.Summary = strings.TrimSpace(data.Summary)

	return &data, nil
}

func parseDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: no date", ErrIncompleteScan)
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d.Format(models.DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: unreadable date %q", ErrIncompleteScan, value)
}
