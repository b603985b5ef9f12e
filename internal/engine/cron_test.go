package engine

import (
	"testing"
	"time"
)

func TestValidateCronExpr(t *testing.T) {
	valid := []string{
		"0 6 * * *",
		"*/15 * * * *",
		"30 2 1 * *",
		"0 0 * * 1-5",
	}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("expression %q should be valid: %v", expr, err)
		}
	}

	invalid := []string{
		"",
		"not a cron",
		"60 * * * *",
		"* * * *",      // 4 поля
		"* * * * * *",  // 6 полей (секунды не поддерживаются)
		"@every 5m an", // мусор после дескриптора
	}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("expression %q should be invalid", expr)
		}
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 3, 10, 5, 30, 0, 0, time.UTC)

	next, err := NextRun("0 6 * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected next run %v, got %v", want, next)
	}

	// from после сегодняшнего запуска — следующий день
	from = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	next, err = NextRun("0 6 * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want = time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected next run %v, got %v", want, next)
	}
}

func TestNextRun_InvalidExpr(t *testing.T) {
	if _, err := NextRun("bogus", time.Now()); err == nil {
		t.Error("expected error for invalid expression")
	}
}
