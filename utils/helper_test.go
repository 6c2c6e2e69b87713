package utils

import (
	"testing"
	"time"
)

func TestDaysInRange_StepsCalendarDays(t *testing.T) {
	from, _ := ParseDate("2024-03-09")
	to, _ := ParseDate("2024-03-12")
	days := DaysInRange(from, to)
	want := []string{"2024-03-09", "2024-03-10", "2024-03-11", "2024-03-12"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if FormatDate(d) != want[i] {
			t.Fatalf("day %d: expected %s, got %s", i, want[i], FormatDate(d))
		}
	}
}

func TestDaysInRange_IgnoresLocalDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2024-03-10 is the spring-forward day in New York.
	from := time.Date(2024, 3, 9, 23, 30, 0, 0, loc)
	to := time.Date(2024, 3, 11, 0, 30, 0, 0, loc)
	days := DaysInRange(from, to)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if FormatDate(days[1]) != "2024-03-10" {
		t.Fatalf("expected 2024-03-10, got %s", FormatDate(days[1]))
	}
}

func TestDaysInRange_EmptyWhenReversed(t *testing.T) {
	from, _ := ParseDate("2024-01-02")
	to, _ := ParseDate("2024-01-01")
	if days := DaysInRange(from, to); len(days) != 0 {
		t.Fatalf("expected no days, got %d", len(days))
	}
}

func TestParseDate_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "2024/01/01", "2024-13-01", "yesterday"} {
		if _, err := ParseDate(in); err == nil {
			t.Fatalf("ParseDate(%q) expected error", in)
		}
	}
}

func TestUniqueSlice_KeepsFirstOccurrenceOrder(t *testing.T) {
	got := UniqueSlice([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
