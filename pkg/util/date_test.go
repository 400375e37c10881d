package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseDateISO(t *testing.T) {
	got, err := ParseDate("2024-10-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseDateRFC3339TruncatesToDay(t *testing.T) {
	got, err := ParseDate("2024-10-10T23:10:10Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Format(time.DateOnly) != "2024-10-10" || got.Hour() != 0 {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestParseDateUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, err := ParseDate(strconv.FormatInt(ts, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Format(time.DateOnly) != "2024-10-10" {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, err := ParseDate("tomorrow"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, err := ParseDateDefault("", def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(DayStart(def)) {
		t.Fatalf("expected default day, got %v", got)
	}
}

func TestWindow(t *testing.T) {
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	from, to := Window(end, 180)
	if to.Format(time.DateOnly) != "2024-02-29" {
		t.Fatalf("to = %v, want 2024-02-29", to)
	}
	if from.Format(time.DateOnly) != "2023-09-03" {
		t.Fatalf("from = %v, want 2023-09-03", from)
	}
}
