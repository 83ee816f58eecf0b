package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "usage_test.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecord_And_Summary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	recs := []Record{
		{
			Timestamp:      now,
			CorrelationID:  "corr-001",
			CallerID:       "caller-1",
			ConversationID: "conv-1",
			Model:          "claude-sonnet-4-20250514",
			Phase:          PhaseLoop,
			InputTokens:    1000,
			OutputTokens:   500,
			CostUSD:        0.0105, // 1000/1M*3 + 500/1M*15
		},
		{
			Timestamp:      now,
			CorrelationID:  "corr-001",
			CallerID:       "caller-1",
			ConversationID: "conv-1",
			Model:          "claude-sonnet-4-20250514",
			Phase:          PhaseEvidence,
			InputTokens:    2000,
			OutputTokens:   1000,
			CostUSD:        0.021,
		},
		{
			Timestamp:      now,
			CorrelationID:  "corr-002",
			CallerID:       "caller-2",
			ConversationID: "conv-2",
			Model:          "claude-haiku-3-5-20241022",
			Phase:          PhaseLoop,
			InputTokens:    500,
			OutputTokens:   200,
			CostUSD:        0.001,
		},
	}

	for i, rec := range recs {
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	sum, err := s.Summary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", sum.TotalRecords)
	}
	if sum.TotalInputTokens != 3500 {
		t.Errorf("TotalInputTokens = %d, want 3500", sum.TotalInputTokens)
	}
	if sum.TotalOutputTokens != 1700 {
		t.Errorf("TotalOutputTokens = %d, want 1700", sum.TotalOutputTokens)
	}
	if got, want := sum.TotalCostUSD, 0.0325; got < want-0.0001 || got > want+0.0001 {
		t.Errorf("TotalCostUSD = %f, want %f", got, want)
	}
}

func TestSummary_WindowExcludes(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := s.Record(ctx, Record{
		Timestamp:     old,
		CorrelationID: "corr-old",
		CallerID:      "caller-1",
		Model:         "claude-sonnet-4-20250514",
		InputTokens:   100,
		OutputTokens:  50,
		CostUSD:       0.001,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	start := time.Now().UTC().Add(-time.Hour)
	sum, err := s.Summary(start, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0 for window after record", sum.TotalRecords)
	}
}

func TestSummaryByModel(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	models := []string{"claude-sonnet-4-20250514", "claude-sonnet-4-20250514", "claude-haiku-3-5-20241022"}
	for i, model := range models {
		if err := s.Record(ctx, Record{
			Timestamp:     now,
			CorrelationID: "corr-x",
			CallerID:      "caller-1",
			Model:         model,
			InputTokens:   100 * (i + 1),
			OutputTokens:  50,
			CostUSD:       0.001,
		}); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	byModel, err := s.SummaryByModel(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SummaryByModel: %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("got %d models, want 2", len(byModel))
	}
	sonnet := byModel["claude-sonnet-4-20250514"]
	if sonnet == nil || sonnet.TotalRecords != 2 {
		t.Errorf("sonnet summary = %+v, want 2 records", sonnet)
	}
	if sonnet != nil && sonnet.TotalInputTokens != 300 {
		t.Errorf("sonnet input tokens = %d, want 300", sonnet.TotalInputTokens)
	}
}

func TestSummaryByCaller(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, caller := range []string{"caller-a", "caller-a", "caller-b"} {
		if err := s.Record(ctx, Record{
			Timestamp:     now,
			CorrelationID: "corr-x",
			CallerID:      caller,
			Model:         "claude-sonnet-4-20250514",
			InputTokens:   100,
			OutputTokens:  50,
			CostUSD:       0.002,
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	byCaller, err := s.SummaryByCaller(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SummaryByCaller: %v", err)
	}
	if byCaller["caller-a"] == nil || byCaller["caller-a"].TotalRecords != 2 {
		t.Errorf("caller-a = %+v, want 2 records", byCaller["caller-a"])
	}
	if byCaller["caller-b"] == nil || byCaller["caller-b"].TotalRecords != 1 {
		t.Errorf("caller-b = %+v, want 1 record", byCaller["caller-b"])
	}
}

func TestRecord_GeneratesID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Record{
		CorrelationID: "corr-gen",
		CallerID:      "caller-1",
		Model:         "claude-sonnet-4-20250514",
		InputTokens:   10,
		OutputTokens:  5,
		CostUSD:       0.0001,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sum, err := s.Summary(time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", sum.TotalRecords)
	}
}
