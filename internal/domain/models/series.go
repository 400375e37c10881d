package models

import "time"

// DailyTotal is the aggregated amount for one calendar day.
// Days without activity are absent from a series rather than zero.
type DailyTotal struct {
	Date  time.Time `json:"date"`
	Total float64   `json:"total"`
}

// SeriesFilter narrows which source records feed a series.
type SeriesFilter struct {
	Category        string
	TransactionType string
}

// Values extracts the totals of a series in order.
func Values(series []DailyTotal) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Total
	}
	return out
}

// User is the identity resolved from the user directory.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Transaction is a single ledger entry that series sources aggregate by day.
type Transaction struct {
	UserID          int64     `json:"user_id"`
	Date            time.Time `json:"date"`
	Amount          float64   `json:"amount"`
	Category        string    `json:"category"`
	TransactionType string    `json:"transaction_type"`
}

// Matches reports whether t passes the filter. Empty filter fields match anything.
func (f SeriesFilter) Matches(t Transaction) bool {
	if f.Category != "" && f.Category != t.Category {
		return false
	}
	if f.TransactionType != "" && f.TransactionType != t.TransactionType {
		return false
	}
	return true
}
