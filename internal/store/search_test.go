package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/recall/internal/model"
)

func ids(ms []model.Memory) []int64 {
	out := make([]int64, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestSearch_Ranked(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	dog := mustAdd(t, s, AddParams{UserID: "ken", Text: "User's dog = Nova", Tags: []string{"pet", "name"}})
	mustAdd(t, s, AddParams{UserID: "ken", Text: "Prefers character-driven first-contact audiobooks", TTLDays: 365})
	mustAdd(t, s, AddParams{UserID: "ken", Text: "Lives in Colorado; likes local meetups"})

	got, err := s.Search(ctx, SearchParams{UserID: "ken", Query: `"dog" OR name`, TopK: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != dog {
		t.Fatalf("expected dog memory, got %v", ids(got))
	}
	if len(got[0].Tags) != 2 || got[0].Tags[0] != "pet" {
		t.Errorf("expected tags to round-trip, got %v", got[0].Tags)
	}

	got, err = s.Search(ctx, SearchParams{UserID: "ken", Query: "javascript", TopK: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestSearch_RankedOrdersByRelevance(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	mustAdd(t, s, AddParams{UserID: "u", Text: "nova went to the park with the neighbours on sunday"})
	clock.Advance(time.Second)
	best := mustAdd(t, s, AddParams{UserID: "u", Text: "nova nova nova"})
	clock.Advance(time.Second)
	mustAdd(t, s, AddParams{UserID: "u", Text: "a long note that mentions nova exactly once among many other words"})

	got, err := s.Search(ctx, SearchParams{UserID: "u", Query: "nova", TopK: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != best {
		t.Fatalf("expected best match %d, got %v", best, ids(got))
	}
}

func TestSearch_RankedSyntaxError(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, AddParams{UserID: "u", Text: "anything"})

	if _, err := s.Search(context.Background(), SearchParams{UserID: "u", Query: `"unbalanced`, TopK: 5}); err == nil {
		t.Fatal("expected fts syntax error to propagate")
	}
}

func TestSearch_DeletedExcluded(t *testing.T) {
	for name, open := range map[string]func(*testing.T) (*SQLiteStore, *testClock){
		"ranked":    newTestStore,
		"substring": newSubstringStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := open(t)

			id := mustAdd(t, s, AddParams{UserID: "u", Text: "this should not appear"})
			if _, err := s.Delete(ctx, "u", []int64{id}); err != nil {
				t.Fatalf("delete: %v", err)
			}

			for _, include := range []bool{false, true} {
				got, err := s.Search(ctx, SearchParams{UserID: "u", Query: "appear", TopK: 5, IncludeExpired: include})
				if err != nil {
					t.Fatalf("search: %v", err)
				}
				if len(got) != 0 {
					t.Fatalf("include_expired=%v: expected 0, got %v", include, ids(got))
				}
			}
		})
	}
}

func TestSearch_ExpiredExcluded(t *testing.T) {
	for name, open := range map[string]func(*testing.T) (*SQLiteStore, *testClock){
		"ranked":    newTestStore,
		"substring": newSubstringStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, clock := open(t)

			temp := mustAdd(t, s, AddParams{UserID: "u", Text: "temp data", TTLDays: 1})
			keep := mustAdd(t, s, AddParams{UserID: "u", Text: "keep data"})
			clock.Advance(24 * time.Hour)

			got, err := s.Search(ctx, SearchParams{UserID: "u", Query: "data", TopK: 5})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 1 || got[0].ID != keep {
				t.Fatalf("expected only %d, got %v", keep, ids(got))
			}

			got, err = s.Search(ctx, SearchParams{UserID: "u", Query: "data", TopK: 5, IncludeExpired: true})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected both with include_expired, got %v", ids(got))
			}
			for _, m := range got {
				if m.ID == temp && !m.Expired(clock.Now()) {
					t.Error("expected temp memory to report expired")
				}
			}
		})
	}
}

func TestSearch_TagAnySemantics(t *testing.T) {
	for name, open := range map[string]func(*testing.T) (*SQLiteStore, *testClock){
		"ranked":    newTestStore,
		"substring": newSubstringStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := open(t)

			pet := mustAdd(t, s, AddParams{UserID: "u", Text: "dog is called Nova", Tags: []string{"pet"}})
			mustAdd(t, s, AddParams{UserID: "u", Text: "dog walker comes at noon"})
			mustAdd(t, s, AddParams{UserID: "u", Text: "dog food brand", Tags: []string{}})

			tests := []struct {
				tags []string
				want int
			}{
				{[]string{"pet", "car"}, 1},
				{[]string{"car", "boat"}, 0},
				{[]string{"", "pet", "pet"}, 1},
				{[]string{""}, 0},
				{[]string{}, 3},
				{nil, 3},
			}
			for _, tt := range tests {
				got, err := s.Search(ctx, SearchParams{UserID: "u", Query: "dog", TopK: 5, TagAny: tt.tags})
				if err != nil {
					t.Fatalf("search %v: %v", tt.tags, err)
				}
				if len(got) != tt.want {
					t.Errorf("tag_any=%v: expected %d, got %v", tt.tags, tt.want, ids(got))
				}
				if tt.want == 1 && got[0].ID != pet {
					t.Errorf("tag_any=%v: expected pet memory, got %v", tt.tags, ids(got))
				}
			}
		})
	}
}

func TestSearch_SubstringFallback(t *testing.T) {
	ctx := context.Background()
	s, clock := newSubstringStore(t)

	older := mustAdd(t, s, AddParams{UserID: "ken", Text: "User's dog = Nova"})
	clock.Advance(time.Minute)
	newer := mustAdd(t, s, AddParams{UserID: "ken", Text: "Nova likes the beach"})
	clock.Advance(time.Minute)
	newest := mustAdd(t, s, AddParams{UserID: "ken", Text: "NOVA is three years old"})

	got, err := s.Search(ctx, SearchParams{UserID: "ken", Query: "nova", TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []int64{newest, newer, older}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("expected recency order %v, got %v", want, ids(got))
		}
	}

	got, err = s.Search(ctx, SearchParams{UserID: "ken", Query: "nova", TopK: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != newest {
		t.Fatalf("expected most recent only, got %v", ids(got))
	}

	// Refreshing an old memory moves it to the front.
	clock.Advance(time.Minute)
	mustAdd(t, s, AddParams{UserID: "ken", Text: "User's dog = Nova"})
	got, err = s.Search(ctx, SearchParams{UserID: "ken", Query: "nova", TopK: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != older {
		t.Fatalf("expected refreshed memory first, got %v", ids(got))
	}
}

func TestSearch_SubstringEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s, _ := newSubstringStore(t)

	literal := mustAdd(t, s, AddParams{UserID: "u", Text: "battery at 100% today"})
	mustAdd(t, s, AddParams{UserID: "u", Text: "battery at 1000 mAh"})
	under := mustAdd(t, s, AddParams{UserID: "u", Text: "file name_with_underscore"})
	mustAdd(t, s, AddParams{UserID: "u", Text: "file nameXwithXunderscore"})

	got, err := s.Search(ctx, SearchParams{UserID: "u", Query: "100%", TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != literal {
		t.Errorf("expected literal %% match, got %v", ids(got))
	}

	got, err = s.Search(ctx, SearchParams{UserID: "u", Query: "name_with", TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != under {
		t.Errorf("expected literal _ match, got %v", ids(got))
	}
}

func TestSearch_DegenerateArguments(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	mustAdd(t, s, AddParams{UserID: "u", Text: "something"})

	for _, p := range []SearchParams{
		{UserID: "u", Query: "something", TopK: 0},
		{UserID: "u", Query: "something", TopK: -1},
		{UserID: "u", Query: "   ", TopK: 5},
		{UserID: "u", Query: "", TopK: 5},
	} {
		got, err := s.Search(ctx, p)
		if err != nil {
			t.Fatalf("search %+v: %v", p, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("search %+v: expected empty non-nil slice, got %v", p, got)
		}
	}
}

func TestSearch_OwnershipIsolation(t *testing.T) {
	for name, open := range map[string]func(*testing.T) (*SQLiteStore, *testClock){
		"ranked":    newTestStore,
		"substring": newSubstringStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := open(t)

			a := mustAdd(t, s, AddParams{UserID: "alice", Text: "shared secret"})
			b := mustAdd(t, s, AddParams{UserID: "bob", Text: "shared secret"})

			got, err := s.Search(ctx, SearchParams{UserID: "alice", Query: "secret", TopK: 5})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 1 || got[0].ID != a {
				t.Fatalf("alice should only see %d, got %v", a, ids(got))
			}

			n, err := s.Delete(ctx, "alice", []int64{b})
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			if n != 0 {
				t.Fatalf("alice must not delete bob's memory, changed %d", n)
			}

			got, err = s.Search(ctx, SearchParams{UserID: "bob", Query: "secret", TopK: 5})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 1 || got[0].ID != b {
				t.Fatalf("bob should still see %d, got %v", b, ids(got))
			}
		})
	}
}

func TestSearch_TopKCapped(t *testing.T) {
	ctx := context.Background()
	s, _ := newSubstringStore(t)

	for i := 0; i < MaxTopK+5; i++ {
		mustAdd(t, s, AddParams{UserID: "u", Text: "note " + time.Duration(i).String()})
	}
	got, err := s.Search(ctx, SearchParams{UserID: "u", Query: "note", TopK: MaxTopK * 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != MaxTopK {
		t.Fatalf("expected %d results, got %d", MaxTopK, len(got))
	}
}
