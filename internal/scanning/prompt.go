package scanning

import (
	"strings"

	"github.com/zombor/receipt-keeper/internal/models"
)

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
var receiptScanPrompt = `You are analyzing a photo of a shopping receipt. Read all of the printed text and extract:

1. **store_name**: the merchant name, usually the largest text at the top.
2. **website**: the store's website domain if printed or well known (e.g. "target.com"), otherwise "".
3. **total_amount**: the final amount paid, as a number without currency symbols.
4. **currency**: the ISO currency code (e.g. "USD", "EUR") or the symbol printed next to the total.
5. **date**: the purchase date in YYYY-MM-DD format.
6. **category**: exactly one of ` + categoryList() + `.
7. **barcode_value**: the digits under any barcode on the receipt, otherwise "".
8. **summary**: a short description of what was bought.

Return ONLY valid JSON in this exact format:
{
  "store_name": "",
  "website": "",
  "total_amount": 0.00,
  "currency": "",
  "date": "YYYY-MM-DD",
  "category": "",
  "barcode_value": "",
  "summary": ""
}

Important:
- total_amount must be a number, not a string
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

func categoryList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
