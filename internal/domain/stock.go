package domain

// Garment type keys used by the stock ledger. The shop tracks three fabric
// lines; the ledger itself accepts any type key on upsert.
const (
	StockTypeNormal     = "ปกติ"
	StockTypeMonochrome = "ขาวดำ"
	StockTypeSpecial    = "พิเศษ"
)

// StockSizeLabels returns the closed set of size keys every stock entry
// carries, smallest to largest.
func StockSizeLabels() []string {
	return []string{
		"SSS", "SS", "S", "M", "L", "XL",
		"2XL", "3XL", "4XL", "5XL", "6XL",
		"7XL", "8XL", "9XL", "10XL",
	}
}

// NormalizeSizes copies the given quantities onto the full size-label set,
// filling absent labels with zero and dropping unknown labels.
func NormalizeSizes(sizes map[string]int) map[string]int {
	normalized := make(map[string]int, len(StockSizeLabels()))
	for _, label := range StockSizeLabels() {
		normalized[label] = sizes[label]
	}
	return normalized
}

// DefaultStockEntries returns the three seed ledger entries used when the
// stock collection is read while still empty.
func DefaultStockEntries() []StockEntry {
	return []StockEntry{
		{
			Type: StockTypeNormal,
			Sizes: map[string]int{
				"SSS": 10, "SS": 12, "S": 8, "M": 7, "L": 5, "XL": 4,
				"2XL": 6, "3XL": 9, "4XL": 11, "5XL": 7, "6XL": 3,
				"7XL": 2, "8XL": 3, "9XL": 6, "10XL": 8,
			},
		},
		{
			Type: StockTypeMonochrome,
			Sizes: map[string]int{
				"SSS": 14, "SS": 15, "S": 13, "M": 12, "L": 10, "XL": 9,
				"2XL": 8, "3XL": 10, "4XL": 12, "5XL": 11, "6XL": 7,
				"7XL": 5, "8XL": 4, "9XL": 2, "10XL": 2,
			},
		},
		{
			Type: StockTypeSpecial,
			Sizes: map[string]int{
				"SSS": 6, "SS": 7, "S": 5, "M": 4, "L": 4, "XL": 3,
				"2XL": 6, "3XL": 8, "4XL": 9, "5XL": 6, "6XL": 4,
				"7XL": 3, "8XL": 2, "9XL": 5, "10XL": 6,
			},
		},
	}
}

// DefaultPaymentSettings is the built-in transfer destination used when no
// settings document has been saved yet.
func DefaultPaymentSettings() PaymentSettings {
	return PaymentSettings{
		BankName:      "ธนาคารกสิกรไทย",
		AccountName:   "สมชาย ใจดี",
		AccountNumber: "123-456-7890",
		QRCodeImage:   "/images/qr-payment.png",
	}
}
