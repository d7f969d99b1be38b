package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRegister_RejectsInvalidSpec(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())

	if err := s.Register("not a cron spec", "bad", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRegister_AcceptsJobSpecs(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())

	for _, spec := range []string{SpecBudgetAlerts, SpecRecurring, SpecMonthlyReports} {
		if err := s.Register(spec, "job", func(context.Context) error { return nil }); err != nil {
			t.Errorf("Register(%q) returned error: %v", spec, err)
		}
	}
}

func TestStop_WaitsForRunningJob(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())

	// A failing job must not take the scheduler down.
	if err := s.Register("* * * * *", "failing", func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}
