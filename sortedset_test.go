package zrank

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func TestSortedSet_AddAndScore(t *testing.T) {
	set := New[string]()

	set.Add("alice", 42)
	set.Add("bob", 17.5)

	if got := set.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	score, ok := set.Score("alice")
	if !ok || score != 42 {
		t.Errorf("Score(alice) = (%v, %v), want (42, true)", score, ok)
	}
	if _, ok := set.Score("carol"); ok {
		t.Error("Score on an absent key should report false")
	}
}

func TestSortedSet_AddSameScoreIsNoOp(t *testing.T) {
	set := New[string]()
	set.Add("a", 1)
	set.Add("b", 2)

	before := set.RangeWithScores(0, -1)
	set.Add("a", 1) // exact same score
	after := set.RangeWithScores(0, -1)

	if set.Len() != 2 {
		t.Fatalf("Len() = %d after re-add, want 2", set.Len())
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("re-adding at the same score changed the ordering: %v vs %v", before, after)
	}
	checkListInvariants(t, set)
}

func TestSortedSet_AddMovesKeyOnScoreChange(t *testing.T) {
	set := New[string]()
	set.Add("a", 1)
	set.Add("b", 2)
	set.Add("c", 3)

	set.Add("a", 10) // was lowest, now highest

	if got := set.Range(0, -1); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Errorf("Range(0, -1) = %v, want [b c a]", got)
	}
	if set.Len() != 3 {
		t.Errorf("Len() = %d after score change, want 3", set.Len())
	}
	checkListInvariants(t, set)
}

func TestSortedSet_IncrBy(t *testing.T) {
	set := New[string]()

	// Absent key: a fresh add at exactly the delta.
	if got := set.IncrBy("a", 5); got != 5 {
		t.Errorf("IncrBy on absent key = %v, want 5", got)
	}
	if got := set.IncrBy("a", 2.5); got != 7.5 {
		t.Errorf("IncrBy(a, 2.5) = %v, want 7.5", got)
	}
	if got := set.IncrBy("a", -10); got != -2.5 {
		t.Errorf("IncrBy(a, -10) = %v, want -2.5", got)
	}

	score, ok := set.Score("a")
	if !ok || score != -2.5 {
		t.Errorf("Score(a) = (%v, %v), want (-2.5, true)", score, ok)
	}
	checkListInvariants(t, set)
}

func TestSortedSet_Remove(t *testing.T) {
	set := New[string]()
	set.Add("a", 1)
	set.Add("b", 2)

	if !set.Remove("a") {
		t.Error("Remove(a) should report true")
	}
	if set.Remove("a") {
		t.Error("removing an already-absent key should report false")
	}
	if _, ok := set.Score("a"); ok {
		t.Error("removed key should have no score")
	}
	if set.Len() != 1 {
		t.Errorf("Len() = %d, want 1", set.Len())
	}
	checkListInvariants(t, set)
}

// TestSortedSet_Leaderboard walks a full leaderboard session: equal-score
// ordering after an increment, rank queries, and removal, all observed through
// the public surface.
func TestSortedSet_Leaderboard(t *testing.T) {
	set := New[int]()
	set.Add(1, 300)
	set.Add(2, 299.9)
	set.Add(3, 100000)

	want := []Entry[int]{{2, 299.9}, {1, 300}, {3, 100000}}
	if got := set.RangeWithScores(0, -1); !reflect.DeepEqual(got, want) {
		t.Fatalf("RangeWithScores(0, -1) = %v, want %v", got, want)
	}

	if rank, ok := set.Rank(1); !ok || rank != 1 {
		t.Errorf("Rank(1) = (%d, %v), want (1, true)", rank, ok)
	}
	if rank, ok := set.RevRank(3); !ok || rank != 0 {
		t.Errorf("RevRank(3) = (%d, %v), want (0, true)", rank, ok)
	}

	set.Remove(3)

	// Player 2 catches up to exactly 300; the tie breaks on key, so player 1
	// stays ahead.
	if got := set.IncrBy(2, 0.1); got != 300.0 {
		t.Fatalf("IncrBy(2, 0.1) = %v, want 300.0", got)
	}
	want = []Entry[int]{{1, 300}, {2, 300}}
	if got := set.RangeWithScores(0, -1); !reflect.DeepEqual(got, want) {
		t.Errorf("after the tie, RangeWithScores(0, -1) = %v, want %v", got, want)
	}
	if rank, ok := set.Rank(2); !ok || rank != 1 {
		t.Errorf("Rank(2) = (%d, %v), want (1, true)", rank, ok)
	}
	checkListInvariants(t, set)
}

func TestSortedSet_RankAndRevRank(t *testing.T) {
	set := New[string]()
	set.Add("a", 1)
	set.Add("b", 2)
	set.Add("c", 3)

	tests := []struct {
		key      string
		rank     int
		revRank  int
		present  bool
	}{
		{"a", 0, 2, true},
		{"b", 1, 1, true},
		{"c", 2, 0, true},
		{"missing", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rank, ok := set.Rank(tt.key)
			if ok != tt.present || (ok && rank != tt.rank) {
				t.Errorf("Rank(%s) = (%d, %v), want (%d, %v)", tt.key, rank, ok, tt.rank, tt.present)
			}
			rev, ok := set.RevRank(tt.key)
			if ok != tt.present || (ok && rev != tt.revRank) {
				t.Errorf("RevRank(%s) = (%d, %v), want (%d, %v)", tt.key, rev, ok, tt.revRank, tt.present)
			}
		})
	}
}

func TestSortedSet_RangeByRank(t *testing.T) {
	set := New[string]()
	for key, score := range map[string]float64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5} {
		set.Add(key, score)
	}

	tests := []struct {
		name       string
		start, end int
		want       []string
	}{
		{"everything", 0, -1, []string{"a", "b", "c", "d", "e"}},
		{"prefix", 0, 2, []string{"a", "b", "c"}},
		{"middle", 1, 3, []string{"b", "c", "d"}},
		{"negative window", -3, -1, []string{"c", "d", "e"}},
		{"negative start clamped", -100, 1, []string{"a", "b"}},
		{"end clamped to last", 3, 100, []string{"d", "e"}},
		{"start past end of set", 5, 9, nil},
		{"crossed window", 3, 1, nil},
		{"single entry", 2, 2, []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := set.Range(tt.start, tt.end); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Range(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestSortedSet_RevRange(t *testing.T) {
	set := New[string]()
	set.Add("a", 1)
	set.Add("b", 2)
	set.Add("c", 3)
	set.Add("d", 4)

	tests := []struct {
		name       string
		start, end int
		want       []string
	}{
		{"everything reversed", 0, -1, []string{"d", "c", "b", "a"}},
		{"top two", 0, 1, []string{"d", "c"}},
		{"offset window", 1, 2, []string{"c", "b"}},
		{"negative window", -2, -1, []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := set.RevRange(tt.start, tt.end); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RevRange(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestSortedSet_RangeByScore(t *testing.T) {
	set := New[string]()
	for key, score := range map[string]float64{"a": 1, "b": 2, "c": 2, "d": 3, "e": 5} {
		set.Add(key, score)
	}

	tests := []struct {
		name         string
		min, max     float64
		minEx, maxEx bool
		want         []string
	}{
		{"whole span", 0, 10, false, false, []string{"a", "b", "c", "d", "e"}},
		{"inclusive interval", 2, 3, false, false, []string{"b", "c", "d"}},
		{"min exclusive", 2, 3, true, false, []string{"d"}},
		{"max exclusive", 2, 3, false, true, []string{"b", "c"}},
		{"single point", 2, 2, false, false, []string{"b", "c"}},
		{"single point exclusive", 2, 2, true, false, nil},
		{"crossed bounds", 5, 1, false, false, nil},
		{"gap between scores", 3.5, 4.5, false, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := set.RangeByScore(tt.min, tt.max, tt.minEx, tt.maxEx)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RangeByScore = %v, want %v", got, tt.want)
			}

			// Count must agree with the materialized range.
			if count := set.Count(tt.min, tt.max, tt.minEx, tt.maxEx); count != len(tt.want) {
				t.Errorf("Count = %d, want %d", count, len(tt.want))
			}

			// The reverse query returns the same entries, highest first.
			rev := set.RevRangeByScore(tt.min, tt.max, tt.minEx, tt.maxEx)
			if len(rev) != len(got) {
				t.Fatalf("RevRangeByScore returned %d keys, forward returned %d", len(rev), len(got))
			}
			for i := range got {
				if rev[len(rev)-1-i] != got[i] {
					t.Errorf("RevRangeByScore = %v is not the reverse of %v", rev, got)
					break
				}
			}
		})
	}
}

func TestSortedSet_RangeByScoreWithScores(t *testing.T) {
	set := New[string]()
	set.Add("a", 1)
	set.Add("b", 2)
	set.Add("c", 3)

	want := []Entry[string]{{"a", 1}, {"b", 2}}
	if got := set.RangeByScoreWithScores(1, 2, false, false); !reflect.DeepEqual(got, want) {
		t.Errorf("RangeByScoreWithScores = %v, want %v", got, want)
	}

	wantRev := []Entry[string]{{"c", 3}, {"b", 2}}
	if got := set.RevRangeByScoreWithScores(2, 3, false, false); !reflect.DeepEqual(got, wantRev) {
		t.Errorf("RevRangeByScoreWithScores = %v, want %v", got, wantRev)
	}
}

func TestSortedSet_RemoveRangeByScore(t *testing.T) {
	newSet := func() *SortedSet[string] {
		set := New[string]()
		for key, score := range map[string]float64{"a": 1, "b": 2, "c": 2, "d": 3, "e": 5} {
			set.Add(key, score)
		}
		return set
	}

	tests := []struct {
		name         string
		min, max     float64
		minEx, maxEx bool
		wantRemoved  int
		wantLeft     []string
	}{
		{"middle band", 2, 3, false, false, 3, []string{"a", "e"}},
		{"exclusive band", 2, 3, true, true, 0, []string{"a", "b", "c", "d", "e"}},
		{"everything", -100, 100, false, false, 5, nil},
		{"nothing in range", 10, 20, false, false, 0, []string{"a", "b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := newSet()
			if got := set.RemoveRangeByScore(tt.min, tt.max, tt.minEx, tt.maxEx); got != tt.wantRemoved {
				t.Errorf("removed %d entries, want %d", got, tt.wantRemoved)
			}
			if got := set.Range(0, -1); !reflect.DeepEqual(got, tt.wantLeft) {
				t.Errorf("survivors = %v, want %v", got, tt.wantLeft)
			}
			checkListInvariants(t, set)
		})
	}
}

func TestSortedSet_RemoveRangeByRank(t *testing.T) {
	newSet := func() *SortedSet[string] {
		set := New[string]()
		for key, score := range map[string]float64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5} {
			set.Add(key, score)
		}
		return set
	}

	tests := []struct {
		name        string
		start, end  int
		wantRemoved int
		wantLeft    []string
	}{
		{"everything", 0, -1, 5, nil},
		{"bottom two", 0, 1, 2, []string{"c", "d", "e"}},
		{"top two via negatives", -2, -1, 2, []string{"a", "b", "c"}},
		{"middle", 1, 3, 3, []string{"a", "e"}},
		{"out of range", 9, 12, 0, []string{"a", "b", "c", "d", "e"}},
		{"crossed window", 3, 1, 0, []string{"a", "b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := newSet()
			if got := set.RemoveRangeByRank(tt.start, tt.end); got != tt.wantRemoved {
				t.Errorf("removed %d entries, want %d", got, tt.wantRemoved)
			}
			if got := set.Range(0, -1); !reflect.DeepEqual(got, tt.wantLeft) {
				t.Errorf("survivors = %v, want %v", got, tt.wantLeft)
			}
			checkListInvariants(t, set)
		})
	}
}

func TestSortedSet_RemoveRangeByRankOnEmptySet(t *testing.T) {
	set := New[string]()
	if got := set.RemoveRangeByRank(0, -1); got != 0 {
		t.Errorf("RemoveRangeByRank on empty set = %d, want 0", got)
	}
}

func TestSortedSet_Iterators(t *testing.T) {
	set := New[string]()
	set.Add("a", 1)
	set.Add("b", 2)
	set.Add("c", 3)

	t.Run("forward", func(t *testing.T) {
		it := set.Iterator()
		var got []Entry[string]
		for it.HasNext() {
			got = append(got, it.Next())
		}
		want := []Entry[string]{{"a", 1}, {"b", 2}, {"c", 3}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("forward iteration = %v, want %v", got, want)
		}
	})

	t.Run("reverse", func(t *testing.T) {
		it := set.ReverseIterator()
		var got []Entry[string]
		for it.HasNext() {
			got = append(got, it.Next())
		}
		want := []Entry[string]{{"c", 3}, {"b", 2}, {"a", 1}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("reverse iteration = %v, want %v", got, want)
		}
	})

	t.Run("past the end", func(t *testing.T) {
		it := New[string]().Iterator()
		if it.HasNext() {
			t.Error("empty set iterator should have nothing")
		}
		if got := it.Next(); got != (Entry[string]{}) {
			t.Errorf("Next past the end = %v, want zero Entry", got)
		}
	})
}

// TestSortedSet_RandomOperationsMatchReference drives a long mixed workload
// against a plain map reference and checks that the set never drifts from it.
func TestSortedSet_RandomOperationsMatchReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	set := New[int]()
	ref := make(map[int]float64)

	for i := 0; i < 2000; i++ {
		key := rng.Intn(200)
		switch rng.Intn(5) {
		case 0, 1:
			score := float64(rng.Intn(100)) / 4 // plenty of ties
			set.Add(key, score)
			ref[key] = score
		case 2:
			delta := float64(rng.Intn(9) - 4)
			want := ref[key] + delta
			if got := set.IncrBy(key, delta); got != want {
				t.Fatalf("op %d: IncrBy(%d, %v) = %v, want %v", i, key, delta, got, want)
			}
			ref[key] = want
		case 3:
			_, existed := ref[key]
			if got := set.Remove(key); got != existed {
				t.Fatalf("op %d: Remove(%d) = %v, want %v", i, key, got, existed)
			}
			delete(ref, key)
		case 4:
			want, existed := ref[key]
			got, ok := set.Score(key)
			if ok != existed || (ok && got != want) {
				t.Fatalf("op %d: Score(%d) = (%v, %v), want (%v, %v)", i, key, got, ok, want, existed)
			}
		}

		if set.Len() != len(ref) {
			t.Fatalf("op %d: Len() = %d, reference holds %d", i, set.Len(), len(ref))
		}
	}
	checkListInvariants(t, set)

	// The full range must equal the reference sorted by (score, key).
	want := make([]Entry[int], 0, len(ref))
	for key, score := range ref {
		want = append(want, Entry[int]{Key: key, Score: score})
	}
	sort.Slice(want, func(i, j int) bool {
		return less(want[i].Score, want[i].Key, want[j].Score, want[j].Key)
	})
	got := set.RangeWithScores(0, -1)
	if len(got) != len(want) {
		t.Fatalf("RangeWithScores returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: got %v, want %v", i, got[i], want[i])
		}
	}

	// Every rank round-trips both ways.
	for i, e := range got {
		if rank, ok := set.Rank(e.Key); !ok || rank != i {
			t.Fatalf("Rank(%d) = (%d, %v), want (%d, true)", e.Key, rank, ok, i)
		}
		if rev, ok := set.RevRank(e.Key); !ok || rev != len(got)-1-i {
			t.Fatalf("RevRank(%d) = (%d, %v), want (%d, true)", e.Key, rev, ok, len(got)-1-i)
		}
	}
}

// TestSortedSet_RandomRangeDeletions interleaves score- and rank-window
// deletions with re-population, checking removal counts against the reference.
func TestSortedSet_RandomRangeDeletions(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	set := New[int]()
	ref := make(map[int]float64)

	refill := func() {
		for len(ref) < 80 {
			key := rng.Intn(500)
			score := float64(rng.Intn(60))
			set.Add(key, score)
			ref[key] = score
		}
	}

	for round := 0; round < 30; round++ {
		refill()

		if round%2 == 0 {
			min := float64(rng.Intn(60))
			max := min + float64(rng.Intn(20))
			minEx, maxEx := rng.Intn(2) == 1, rng.Intn(2) == 1
			r := scoreRange{min: min, max: max, minEx: minEx, maxEx: maxEx}

			want := 0
			for key, score := range ref {
				if r.gteMin(score) && r.lteMax(score) {
					delete(ref, key)
					want++
				}
			}
			if got := set.RemoveRangeByScore(min, max, minEx, maxEx); got != want {
				t.Fatalf("round %d: RemoveRangeByScore removed %d, want %d", round, got, want)
			}
		} else {
			start := rng.Intn(40)
			end := start + rng.Intn(40)

			victims := set.Range(start, end)
			if got := set.RemoveRangeByRank(start, end); got != len(victims) {
				t.Fatalf("round %d: RemoveRangeByRank removed %d, want %d", round, got, len(victims))
			}
			for _, key := range victims {
				delete(ref, key)
			}
		}

		if set.Len() != len(ref) {
			t.Fatalf("round %d: Len() = %d, reference holds %d", round, set.Len(), len(ref))
		}
		checkListInvariants(t, set)
	}
}
