package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/veikko/mapstore/internal/data"
)

func TestInMemoryRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := NewInMemory(3)

	for i := 0; i < 5; i++ {
		err := j.Record(ctx, Entry{
			Country:     fmt.Sprintf("Country%d", i),
			Files:       data.MapOptionMap,
			Version:     1234,
			Outcome:     OutcomeComplete,
			Fingerprint: fmt.Sprintf("fp%d", i),
			FinishedAt:  time.Now(),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("capacity not enforced, got %d entries", len(got))
	}
	if got[0].Country != "Country4" || got[2].Country != "Country2" {
		t.Fatalf("unexpected order: %v", got)
	}

	got, err = j.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].Country != "Country4" {
		t.Fatalf("limit not honored: %v", got)
	}
}
