package repository

import (
	"strings"
	"testing"

	"FinCast/internal/domain/models"
)

func TestDailyTotalsQueryFilters(t *testing.T) {
	q, args := dailyTotalsQuery("fin.financial_data", "toDate(date)", "sum(amount)", 7, day(1), day(9), models.SeriesFilter{})
	if strings.Contains(q, "category") || len(args) != 3 {
		t.Fatalf("unfiltered query = %q args = %v", q, args)
	}
	if !strings.HasSuffix(q, "GROUP BY d ORDER BY d ASC") {
		t.Errorf("query ordering: %q", q)
	}

	q, args = dailyTotalsQuery("t", "DATE(date)", "SUM(amount)", 7, day(1), day(9), models.SeriesFilter{Category: "food", TransactionType: "EXPENSE"})
	if !strings.Contains(q, "AND category = ? AND transaction_type = ?") {
		t.Fatalf("filtered query = %q", q)
	}
	if len(args) != 5 || args[3] != "food" || args[4] != "EXPENSE" {
		t.Fatalf("args = %v", args)
	}
}
