package zrank

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORE: A Keyspace of Leaderboards with HYBRID STORAGE
// ═══════════════════════════════════════════════════════════════════════════════
// A Store manages many named sorted sets ("boards") and keeps, per board, a
// roaring bitmap mirroring exactly which members are on it:
//
//	Store
//	├── boards:  map[string]*SortedSet[string]   (SCORE/RANK LEVEL)
//	│   ├── "daily"   → sorted set of (member, score)
//	│   └── "weekly"  → sorted set of (member, score)
//	├── bitmaps: map[string]*roaring.Bitmap      (MEMBERSHIP LEVEL)
//	│   ├── "daily"   → bitmap of member IDs [1, 3, 5, ...]
//	│   └── "weekly"  → bitmap of member IDs [1, 2, 7, ...]
//	├── ids/members: member name ⇄ uint32 interning
//	├── filter: add-only bloom filter over every member ever seen
//	└── mu: mutex serializing all access
//
// Why hybrid storage?
//   - Sorted sets answer everything score- and rank-shaped in O(log n)
//   - Roaring bitmaps answer cross-board membership questions ("who is on
//     daily AND weekly but NOT banned") with compressed O(1)-ish boolean ops
//
// Member names are interned to dense uint32 IDs so the bitmaps stay small
// and one member occupies the same bit on every board. IDs are handed out
// once and never reclaimed: the directory grows to the set of members ever
// seen, not the set currently present.
//
// The Store serializes every operation behind its mutex; the sorted sets
// underneath carry no locking of their own.
// ═══════════════════════════════════════════════════════════════════════════════

type Store struct {
	mu sync.Mutex

	// SCORE/RANK-LEVEL STORAGE
	boards map[string]*SortedSet[string] // Board name → sorted set

	// MEMBERSHIP-LEVEL STORAGE (for cross-board boolean queries)
	bitmaps map[string]*roaring.Bitmap // Board name → member IDs on it

	// Member interning: name ⇄ dense ID
	ids     map[string]uint32 // Member name → ID
	members []string          // ID → member name

	// Negative-lookup fast path: a lookup for a member the filter has never
	// seen can answer "absent" without touching any board.
	filter *bloomFilter

	params ListParams // Tuning inherited by every board
}

// NewStore creates an empty store with default skip list tuning.
func NewStore() *Store {
	return NewStoreWithParams(DefaultListParams())
}

// NewStoreWithParams creates an empty store whose boards all use the given
// skip list tuning.
func NewStoreWithParams(params ListParams) *Store {
	return &Store{
		boards:  make(map[string]*SortedSet[string]),
		bitmaps: make(map[string]*roaring.Bitmap),
		ids:     make(map[string]uint32),
		filter:  newBloomFilter(defaultFilterBytes),
		params:  params.sanitize(),
	}
}

// board returns the named sorted set, creating it on first use.
// Caller holds mu.
func (st *Store) board(name string) *SortedSet[string] {
	set, ok := st.boards[name]
	if !ok {
		slog.Info("creating board", slog.String("board", name))
		set = NewWithParams[string](st.params)
		st.boards[name] = set
		st.bitmaps[name] = roaring.NewBitmap()
	}
	return set
}

// memberID interns a member name, registering it with the filter the first
// time it is seen. Caller holds mu.
func (st *Store) memberID(member string) uint32 {
	if id, ok := st.ids[member]; ok {
		return id
	}
	id := uint32(len(st.members))
	st.ids[member] = id
	st.members = append(st.members, member)
	st.filter.add(member)
	return id
}

// ═══════════════════════════════════════════════════════════════════════════════
// MUTATIONS
// ═══════════════════════════════════════════════════════════════════════════════
// Every mutation updates the board's sorted set AND its membership bitmap in
// the same critical section, so the two views never disagree.
// ═══════════════════════════════════════════════════════════════════════════════

// Add puts the member on the board at the given score, or moves it there.
func (st *Store) Add(board, member string, score float64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.board(board).Add(member, score)
	st.bitmaps[board].Add(st.memberID(member))
}

// IncrBy adds delta to the member's score on the board (fresh add at delta
// when absent) and returns the new score.
func (st *Store) IncrBy(board, member string, delta float64) float64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	score := st.board(board).IncrBy(member, delta)
	st.bitmaps[board].Add(st.memberID(member))
	return score
}

// Remove takes the member off the board. Absent members (or boards) are a
// no-op; the return value reports whether anything was removed.
func (st *Store) Remove(board, member string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok || !set.Remove(member) {
		return false
	}
	st.bitmaps[board].Remove(st.ids[member])
	return true
}

// RemoveRangeByScore evicts every member of the board whose score falls
// inside the interval; returns the number evicted.
func (st *Store) RemoveRangeByScore(board string, min, max float64, minEx, maxEx bool) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return 0
	}
	bitmap := st.bitmaps[board]
	return set.removeRangeByScore(min, max, minEx, maxEx, func(member string, _ float64) {
		bitmap.Remove(st.ids[member])
	})
}

// RemoveRangeByRank evicts the members ranked [start, end] on the board
// (0-based, negative counts from the end); returns the number evicted.
func (st *Store) RemoveRangeByRank(board string, start, end int) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return 0
	}
	bitmap := st.bitmaps[board]
	return set.removeRangeByRank(start, end, func(member string, _ float64) {
		bitmap.Remove(st.ids[member])
	})
}

// Drop discards a whole board. Member IDs stay interned; other boards are
// unaffected.
func (st *Store) Drop(board string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.boards[board]; !ok {
		return false
	}
	slog.Info("dropping board", slog.String("board", board))
	delete(st.boards, board)
	delete(st.bitmaps, board)
	return true
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOOKUPS
// ═══════════════════════════════════════════════════════════════════════════════

// Score returns the member's score on the board.
//
// The bloom filter short-circuits lookups for members the store has never
// seen on any board: "definitely never added" skips the board entirely, a
// "maybe" falls through to the exact answer.
func (st *Store) Score(board, member string) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.filter.mayContain(member) {
		return 0, false
	}
	set, ok := st.boards[board]
	if !ok {
		return 0, false
	}
	return set.Score(member)
}

// Rank returns the member's 0-based rank on the board, lowest score first.
func (st *Store) Rank(board, member string) (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.filter.mayContain(member) {
		return 0, false
	}
	set, ok := st.boards[board]
	if !ok {
		return 0, false
	}
	return set.Rank(member)
}

// RevRank returns the member's 0-based rank on the board, highest score
// first.
func (st *Store) RevRank(board, member string) (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.filter.mayContain(member) {
		return 0, false
	}
	set, ok := st.boards[board]
	if !ok {
		return 0, false
	}
	return set.RevRank(member)
}

// Card returns the number of members on the board (0 for unknown boards).
func (st *Store) Card(board string) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return 0
	}
	return set.Len()
}

// Count returns how many of the board's members score inside the interval.
func (st *Store) Count(board string, min, max float64, minEx, maxEx bool) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return 0
	}
	return set.Count(min, max, minEx, maxEx)
}

// Boards lists the board names, sorted for deterministic output.
func (st *Store) Boards() []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	names := make([]string, 0, len(st.boards))
	for name := range st.boards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ═══════════════════════════════════════════════════════════════════════════════
// RANGE QUERIES (forwarded to the board's sorted set)
// ═══════════════════════════════════════════════════════════════════════════════

// Range returns the board's members ranked [start, end], lowest score first.
func (st *Store) Range(board string, start, end int) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return nil
	}
	return set.Range(start, end)
}

// RevRange returns the board's members ranked [start, end] from the top;
// RevRange(board, 0, 9) is the top ten.
func (st *Store) RevRange(board string, start, end int) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return nil
	}
	return set.RevRange(start, end)
}

// RangeWithScores is Range with scores attached.
func (st *Store) RangeWithScores(board string, start, end int) []Entry[string] {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return nil
	}
	return set.RangeWithScores(start, end)
}

// RevRangeWithScores is RevRange with scores attached.
func (st *Store) RevRangeWithScores(board string, start, end int) []Entry[string] {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return nil
	}
	return set.RevRangeWithScores(start, end)
}

// RangeByScore returns the board's members scoring inside the interval,
// ascending.
func (st *Store) RangeByScore(board string, min, max float64, minEx, maxEx bool) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return nil
	}
	return set.RangeByScore(min, max, minEx, maxEx)
}

// RevRangeByScore returns the board's members scoring inside the interval,
// descending.
func (st *Store) RevRangeByScore(board string, min, max float64, minEx, maxEx bool) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	set, ok := st.boards[board]
	if !ok {
		return nil
	}
	return set.RevRangeByScore(min, max, minEx, maxEx)
}

// ═══════════════════════════════════════════════════════════════════════════════
// MEMBERSHIP HELPERS (shared with the query builder)
// ═══════════════════════════════════════════════════════════════════════════════

// membership returns a copy of the board's membership bitmap (empty for
// unknown boards). Caller holds mu.
func (st *Store) membership(board string) *roaring.Bitmap {
	if bitmap, ok := st.bitmaps[board]; ok {
		return bitmap.Clone() // Clone so builders can fold in place
	}
	return roaring.NewBitmap()
}

// universe returns the union of every board's membership. Caller holds mu.
func (st *Store) universe() *roaring.Bitmap {
	all := roaring.NewBitmap()
	for _, bitmap := range st.bitmaps {
		all.Or(bitmap)
	}
	return all
}

// resolveMembers maps a bitmap of member IDs back to names, sorted. Caller
// holds mu.
func (st *Store) resolveMembers(bitmap *roaring.Bitmap) []string {
	names := make([]string, 0, bitmap.GetCardinality())
	iter := bitmap.Iterator()
	for iter.HasNext() {
		names = append(names, st.members[iter.Next()])
	}
	sort.Strings(names)
	return names
}

// CommonMembers returns the members present on BOTH boards, sorted.
func (st *Store) CommonMembers(a, b string) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.resolveMembers(roaring.And(st.membership(a), st.membership(b)))
}

// IntersectCount returns how many members are present on both boards,
// without materializing them.
func (st *Store) IntersectCount(a, b string) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	return roaring.And(st.membership(a), st.membership(b)).GetCardinality()
}
