package storage

import (
	"context"
	"testing"
	"time"

	logx "warden/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q) error: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) = %v, want nil store", driver, st)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMemoryStoreAppendAndQuery(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "memory"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	entries := []RunEntry{
		{Job: "backup", Started: base, Duration: time.Second, Outcome: OutcomeOK},
		{Job: "report", Started: base.Add(time.Minute), Duration: 2 * time.Second, Outcome: OutcomeError, Error: "exit 1"},
		{Job: "backup", Started: base.Add(2 * time.Minute), Duration: time.Second, Outcome: OutcomeKilled, Error: "force-killed"},
	}
	for _, e := range entries {
		if err := st.AppendRun(ctx, e); err != nil {
			t.Fatalf("AppendRun error: %v", err)
		}
	}

	// Most recent first, filtered by job.
	runs, err := st.RecentRuns(ctx, "backup", 10)
	if err != nil {
		t.Fatalf("RecentRuns error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Outcome != OutcomeKilled || runs[1].Outcome != OutcomeOK {
		t.Fatalf("order wrong: %+v", runs)
	}

	// Empty job name means all jobs.
	runs, err = st.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentRuns error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
}

func TestMemoryStoreBounded(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "memory", Keep: 5}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if err := st.AppendRun(ctx, RunEntry{Job: "spam", Started: time.Now(), Outcome: OutcomeOK}); err != nil {
			t.Fatalf("AppendRun error: %v", err)
		}
	}
	runs, err := st.RecentRuns(ctx, "spam", 100)
	if err != nil {
		t.Fatalf("RecentRuns error: %v", err)
	}
	if len(runs) != 5 {
		t.Fatalf("runs = %d, want bounded 5", len(runs))
	}
}
