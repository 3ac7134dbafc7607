package histories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/PointLedger/internal/repos/histories"
)

func TestHistories_ListByUser_Empty(t *testing.T) {
	t.Parallel()

	repo := New()

	got, err := repo.ListByUser(t.Context(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestHistories_AppendAndList(t *testing.T) {
	t.Parallel()

	repo := New()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	type entry struct {
		userID uint64
		amount int64
		kind   histories.Kind
	}

	entries := []entry{
		{1, 10, histories.KindCharge},
		{2, 7, histories.KindCharge},
		{1, 10, histories.KindCharge},
		{1, 5, histories.KindUse},
	}

	for i, e := range entries {
		rec, err := repo.Append(t.Context(), e.userID, e.amount, e.kind, at)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}

		if rec.ID != uint64(i+1) {
			t.Fatalf("append %d: want id %d, got %d", i, i+1, rec.ID)
		}
	}

	got, err := repo.ListByUser(t.Context(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []histories.Record{
		{ID: 1, UserID: 1, Amount: 10, Kind: histories.KindCharge, At: at},
		{ID: 3, UserID: 1, Amount: 10, Kind: histories.KindCharge, At: at},
		{ID: 4, UserID: 1, Amount: 5, Kind: histories.KindUse, At: at},
	}

	if len(got) != len(want) {
		t.Fatalf("want %d records, got %d", len(want), len(got))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: want %+v, got %+v", i, want[i], got[i])
		}
	}

	// mutating the returned slice must not leak into the store
	got[0].Amount = 999

	again, err := repo.ListByUser(t.Context(), 1)
	if err != nil {
		t.Fatalf("list again: %v", err)
	}

	if again[0].Amount != 10 {
		t.Fatalf("store was mutated through returned slice: %+v", again[0])
	}
}

func TestHistories_ConcurrentAppend_UniqueIncreasingIDs(t *testing.T) {
	t.Parallel()

	repo := New()

	const (
		users   = 8
		perUser = 50
	)

	var wg sync.WaitGroup
	for u := range users {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()

			for range perUser {
				_, err := repo.Append(context.Background(), userID, 1, histories.KindCharge, time.Now())
				if err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(uint64(u + 1))
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for u := range users {
		recs, err := repo.ListByUser(t.Context(), uint64(u+1))
		if err != nil {
			t.Fatalf("list: %v", err)
		}

		if len(recs) != perUser {
			t.Fatalf("user %d: want %d records, got %d", u+1, perUser, len(recs))
		}

		for i, r := range recs {
			if seen[r.ID] {
				t.Fatalf("duplicate id %d", r.ID)
			}
			seen[r.ID] = true

			if i > 0 && recs[i-1].ID >= r.ID {
				t.Fatalf("user %d: ids not increasing: %d then %d", u+1, recs[i-1].ID, r.ID)
			}
		}
	}
}

func TestHistories_Latency_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := New(WithLatency(time.Hour))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := repo.Append(ctx, 1, 1, histories.KindCharge, time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	if repo.lastID != 0 || len(repo.records) != 0 {
		t.Fatal("canceled append must not create a record")
	}
}
