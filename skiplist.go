package zrank

import (
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// ═══════════════════════════════════════════════════════════════════════════════
// THE ORDERED INDEX: A Span-Augmented Skip List
// ═══════════════════════════════════════════════════════════════════════════════
// A skip list is a probabilistic data structure that allows O(log n) search,
// insert, and delete operations - similar to a balanced tree, but simpler!
//
// VISUAL REPRESENTATION:
// ----------------------
// Think of it as a linked list with "express lanes":
//
// Level 3: HEAD -------------------------------------> [30] -----------> NULL
// Level 2: HEAD ----------------> [15] -------------> [30] -----------> NULL
// Level 1: HEAD -------> [10] --> [15] --> [20] ----> [30] -----------> NULL
// Level 0: HEAD --> [5] -> [10] -> [15] -> [20] -> [25] -> [30] -> [35] -> NULL
//
// Entries are ordered by score; entries with equal scores are ordered by key.
//
// SPANS: The Rank Machinery
// -------------------------
// Every forward link additionally carries a SPAN: the number of level-0 nodes
// the link jumps over, destination included. Summing spans while descending
// tells us exactly how many entries we skipped, which is what turns a plain
// skip list into a rank index:
//
// Level 1: HEAD --(span 2)--> [15] --(span 3)--> [30]
// Level 0: HEAD --(1)-> [10] --(1)-> [15] --(1)-> [20] --(1)-> [25] --(1)-> [30]
//
// Following HEAD→15→30 accumulates 2+3 = 5, so [30] is the 5th entry. Both
// "what is the rank of X" and "which entry is at rank r" become O(log n).
//
// THE ARENA: Indices Instead of Pointers
// --------------------------------------
// Nodes live in a single slice (the arena) and every forward/backward link is
// a stable uint32 index into it. Slot 0 holds the header sentinel, and an
// index of 0 doubles as the nil link - the header is never the target of a
// link, so the two readings can share a value. Deleted slots are pushed onto
// a free list and recycled by later insertions, so the arena only grows to
// the high-water mark of the set.
//
// CAUTION: pointers into the arena are invalidated whenever alloc grows it.
// Methods below hold indices across allocations and only take *listNode
// pointers between them.
// ═══════════════════════════════════════════════════════════════════════════════

// MaxHeight is the tallest tower a node may ever occupy (supports billions of
// elements at p = 0.25).
const MaxHeight = 32

// headerNode is the arena slot of the sentinel header. nilLink marks the
// absence of a node; it shares the header's slot number because no link ever
// points back at the header.
const (
	headerNode uint32 = 0
	nilLink    uint32 = 0
)

// ListParams tunes the skip list geometry.
type ListParams struct {
	MaxHeight int     // Tallest tower a node may draw (1..MaxHeight)
	P         float64 // Probability of promoting a node one level higher
}

// DefaultListParams returns the classic skip list tuning: towers capped at 32
// levels, one-in-four promotion odds.
func DefaultListParams() ListParams {
	return ListParams{
		MaxHeight: MaxHeight,
		P:         0.25,
	}
}

// sanitize clamps out-of-range parameters back to the defaults.
func (p ListParams) sanitize() ListParams {
	if p.MaxHeight < 1 || p.MaxHeight > MaxHeight {
		p.MaxHeight = MaxHeight
	}
	if p.P <= 0 || p.P >= 1 {
		p.P = 0.25
	}
	return p
}

// listLevel is one layer of a node's tower: where the express lane leads, and
// how many level-0 entries the jump covers (destination included).
type listLevel struct {
	forward uint32
	span    int64
}

// listNode is one entry physically present in the list.
//
// The tower is sized exactly to the height the node drew at insertion time -
// a height-1 node carries a single level, not a full 32-slot array. backward
// mirrors the level-0 chain and enables reverse iteration.
type listNode[K constraints.Ordered] struct {
	key      K
	score    float64
	backward uint32
	levels   []listLevel
}

// skipList is the ordered index. It owns every node exclusively: layers above
// it only ever see keys and scores, never node identities.
type skipList[K constraints.Ordered] struct {
	arena  []listNode[K] // Slot 0 is the header sentinel
	free   []uint32      // Recycled slots, used LIFO
	tail   uint32        // Highest-ranked node, nilLink when empty
	length int64         // Number of real entries
	height int           // Levels currently in use (1..params.MaxHeight)
	params ListParams
	rng    *rand.Rand // Per-list source: instances stay fully independent
}

func newSkipList[K constraints.Ordered](params ListParams) *skipList[K] {
	params = params.sanitize()
	sl := &skipList[K]{
		height: 1,
		params: params,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	// The header owns a full-height tower so it can anchor any level the
	// list ever grows to. It holds no entry and is never visible to callers.
	sl.arena = append(sl.arena, listNode[K]{
		levels: make([]listLevel, params.MaxHeight),
	})
	return sl
}

// ═══════════════════════════════════════════════════════════════════════════════
// ARENA MANAGEMENT
// ═══════════════════════════════════════════════════════════════════════════════

// alloc hands out a slot for a new node, preferring a recycled one. The
// returned index is stable for the node's whole lifetime.
func (sl *skipList[K]) alloc(height int, score float64, key K) uint32 {
	if n := len(sl.free); n > 0 {
		idx := sl.free[n-1]
		sl.free = sl.free[:n-1]

		node := &sl.arena[idx]
		node.key = key
		node.score = score
		node.backward = nilLink
		if cap(node.levels) >= height {
			// Reuse the tower the slot retired with.
			node.levels = node.levels[:height]
			for i := range node.levels {
				node.levels[i] = listLevel{}
			}
		} else {
			node.levels = make([]listLevel, height)
		}
		return idx
	}

	sl.arena = append(sl.arena, listNode[K]{
		key:    key,
		score:  score,
		levels: make([]listLevel, height),
	})
	return uint32(len(sl.arena) - 1)
}

// release retires a slot after the node has been unspliced. The key is zeroed
// so the arena does not pin caller-owned memory; the tower slice is kept for
// reuse by alloc.
func (sl *skipList[K]) release(idx uint32) {
	node := &sl.arena[idx]
	var zero K
	node.key = zero
	node.score = 0
	node.backward = nilLink
	sl.free = append(sl.free, idx)
}

// randomLevel draws a tower height: start at 1 and keep promoting with
// probability P until a flip fails or the cap is hit. This geometric
// distribution is what keeps expected search depth logarithmic.
func (sl *skipList[K]) randomLevel() int {
	level := 1
	for sl.rng.Int63()&0xFFFF < int64(sl.params.P*0xFFFF) && level < sl.params.MaxHeight {
		level++
	}
	return level
}

// less orders two entries: primarily by score, ties broken by key. Equal-score
// entries therefore sort deterministically regardless of insertion history.
func less[K constraints.Ordered](aScore float64, aKey K, bScore float64, bKey K) bool {
	if aScore != bScore {
		return aScore < bScore
	}
	return aKey < bKey
}

// ═══════════════════════════════════════════════════════════════════════════════
// INSERT: Two-Phase Splice
// ═══════════════════════════════════════════════════════════════════════════════
// Phase 1 descends from the top level to level 0, recording at every level the
// last node visited (the "update" array - the splice point) and the number of
// level-0 entries crossed to reach it (the "rank" array - the span material).
//
// Phase 2 draws a height, splices the node in at each of its levels, and
// recomputes the affected spans from the rank deltas:
//
//	new.span[i]        = update[i].span[i] - (rank[0] - rank[i])
//	update[i].span[i]  = (rank[0] - rank[i]) + 1
//
// rank[0]-rank[i] is how many entries sit strictly between update[i] and the
// insertion point, which is exactly the part of update[i]'s old jump that now
// belongs in front of the new node. Levels above the new node's height just
// see one more entry pass underneath them, so their spans grow by one.
// ═══════════════════════════════════════════════════════════════════════════════

// insert adds a new (score, key) entry and returns its slot.
//
// The caller is responsible for uniqueness: equal scores are legal, but the
// same key must not already be present (the lookup dict above this layer
// checks before calling in).
func (sl *skipList[K]) insert(score float64, key K) uint32 {
	var update [MaxHeight]uint32
	var rank [MaxHeight]int64

	// PHASE 1: Find the splice point at every level, tracking crossed spans.
	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		if i == sl.height-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1] // Resume from where the level above stopped
		}
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink {
				break
			}
			next := &sl.arena[fwd]
			if !less(next.score, next.key, score, key) {
				break
			}
			rank[i] += sl.arena[x].levels[i].span
			x = fwd
		}
		update[i] = x
	}

	// PHASE 2: Draw a height. If the list has never been this tall, the
	// header becomes the splice point for the new levels; its span starts at
	// the full length because those levels currently jump over everything.
	height := sl.randomLevel()
	if height > sl.height {
		for i := sl.height; i < height; i++ {
			rank[i] = 0
			update[i] = headerNode
			sl.arena[headerNode].levels[i].span = sl.length
		}
		sl.height = height
	}

	idx := sl.alloc(height, score, key)

	// No allocations below this point, so arena pointers stay valid.
	node := &sl.arena[idx]
	for i := 0; i < height; i++ {
		prev := &sl.arena[update[i]]
		node.levels[i].forward = prev.levels[i].forward
		prev.levels[i].forward = idx

		node.levels[i].span = prev.levels[i].span - (rank[0] - rank[i])
		prev.levels[i].span = (rank[0] - rank[i]) + 1
	}

	// Untouched higher levels now skip over one more entry.
	for i := height; i < sl.height; i++ {
		sl.arena[update[i]].levels[i].span++
	}

	if update[0] != headerNode {
		node.backward = update[0]
	}
	if node.levels[0].forward != nilLink {
		sl.arena[node.levels[0].forward].backward = idx
	} else {
		sl.tail = idx
	}
	sl.length++
	return idx
}

// ═══════════════════════════════════════════════════════════════════════════════
// DELETE
// ═══════════════════════════════════════════════════════════════════════════════

// unsplice removes node x from every level it participates in, given the
// update array produced by a descent to x. Levels where x was present absorb
// its span; levels that merely jumped over it shrink by one.
//
// The slot is NOT released here: range deletions need the node's key and
// score after unsplicing, so the caller releases when it is done.
func (sl *skipList[K]) unsplice(x uint32, update *[MaxHeight]uint32) {
	for i := 0; i < sl.height; i++ {
		prev := &sl.arena[update[i]]
		if prev.levels[i].forward == x {
			prev.levels[i].span += sl.arena[x].levels[i].span - 1
			prev.levels[i].forward = sl.arena[x].levels[i].forward
		} else {
			prev.levels[i].span--
		}
	}

	node := &sl.arena[x]
	if node.levels[0].forward != nilLink {
		sl.arena[node.levels[0].forward].backward = node.backward
	} else {
		sl.tail = node.backward
	}

	// Drop levels that just became empty.
	for sl.height > 1 && sl.arena[headerNode].levels[sl.height-1].forward == nilLink {
		sl.height--
	}
	sl.length--
}

// delete removes the entry matching BOTH score and key. Both are required:
// distinct keys may tie on score, and the score narrows the search to the
// right run of ties. Returns false when no such entry exists - an absence
// signal, not an error.
func (sl *skipList[K]) delete(score float64, key K) bool {
	var update [MaxHeight]uint32

	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink {
				break
			}
			next := &sl.arena[fwd]
			if !less(next.score, next.key, score, key) {
				break
			}
			x = fwd
		}
		update[i] = x
	}

	target := sl.arena[x].levels[0].forward
	if target == nilLink {
		return false
	}
	if node := &sl.arena[target]; node.score != score || node.key != key {
		return false
	}

	sl.unsplice(target, &update)
	sl.release(target)
	return true
}

// ═══════════════════════════════════════════════════════════════════════════════
// RANK OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// rankOf returns the 1-based position of (score, key), or 0 when the entry is
// not present. The descent accumulates spans while the next entry still
// orders at or before the target, so when it lands on the key the running
// total IS the rank - no re-walk from the start.
func (sl *skipList[K]) rankOf(score float64, key K) int64 {
	var rank int64

	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink {
				break
			}
			next := &sl.arena[fwd]
			if next.score > score || (next.score == score && next.key > key) {
				break
			}
			rank += sl.arena[x].levels[i].span
			x = fwd
		}

		// x may still be the header at this level, which carries no entry.
		if x != headerNode && sl.arena[x].key == key {
			return rank
		}
	}
	return 0
}

// nodeAtRank is the inverse of rankOf: it returns the slot of the entry at
// the given 1-based rank, or nilLink when the rank is out of range. Descends
// while the accumulated span stays within the target.
func (sl *skipList[K]) nodeAtRank(rank int64) uint32 {
	if rank < 1 || rank > sl.length {
		return nilLink
	}

	var traversed int64
	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink || traversed+sl.arena[x].levels[i].span > rank {
				break
			}
			traversed += sl.arena[x].levels[i].span
			x = fwd
		}
		if x != headerNode && traversed == rank {
			return x
		}
	}
	return nilLink
}

// first returns the lowest-ranked entry's slot, nilLink when empty.
func (sl *skipList[K]) first() uint32 {
	return sl.arena[headerNode].levels[0].forward
}

// ═══════════════════════════════════════════════════════════════════════════════
// RANGE QUERY ENGINE: Score Intervals
// ═══════════════════════════════════════════════════════════════════════════════
// A scoreRange is an interval with independently inclusive/exclusive bounds.
// All "by score" operations are parameterized by one.
//
// EXAMPLES:
// ---------
// {min: 5, max: 10}                 → 5 <= s <= 10
// {min: 5, max: 10, minEx: true}    → 5 <  s <= 10
// {min: 5, max: 5,  minEx: true}    → empty (single point, open on one side)
// {min: 9, max: 3}                  → empty (bounds crossed)
// ═══════════════════════════════════════════════════════════════════════════════

type scoreRange struct {
	min, max     float64
	minEx, maxEx bool
}

func (r scoreRange) gteMin(score float64) bool {
	if r.minEx {
		return score > r.min
	}
	return score >= r.min
}

func (r scoreRange) lteMax(score float64) bool {
	if r.maxEx {
		return score < r.max
	}
	return score <= r.max
}

func (r scoreRange) empty() bool {
	return r.min > r.max || (r.min == r.max && (r.minEx || r.maxEx))
}

// overlaps reports whether any part of the list falls inside the range.
// Probing just the first and last entries rejects disjoint ranges in O(1)
// before any descent happens.
func (sl *skipList[K]) overlaps(r scoreRange) bool {
	if r.empty() {
		return false
	}
	if sl.tail == nilLink || !r.gteMin(sl.arena[sl.tail].score) {
		return false
	}
	first := sl.first()
	if first == nilLink || !r.lteMax(sl.arena[first].score) {
		return false
	}
	return true
}

// firstInRange returns the lowest-ranked entry inside the range, nilLink when
// the range selects nothing. The descent skips forward while the NEXT entry
// still fails the min bound, landing exactly on the boundary; the max bound
// is then verified once.
func (sl *skipList[K]) firstInRange(r scoreRange) uint32 {
	if !sl.overlaps(r) {
		return nilLink
	}

	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink || r.gteMin(sl.arena[fwd].score) {
				break
			}
			x = fwd
		}
	}

	// overlaps() guarantees an in-range entry ahead of us.
	x = sl.arena[x].levels[0].forward
	if !r.lteMax(sl.arena[x].score) {
		return nilLink
	}
	return x
}

// lastInRange is the mirror image: skip forward while the next entry still
// satisfies the max bound, then verify min.
func (sl *skipList[K]) lastInRange(r scoreRange) uint32 {
	if !sl.overlaps(r) {
		return nilLink
	}

	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink || !r.lteMax(sl.arena[fwd].score) {
				break
			}
			x = fwd
		}
	}

	if x == headerNode || !r.gteMin(sl.arena[x].score) {
		return nilLink
	}
	return x
}

// countInRange computes how many entries fall inside the range as a rank
// difference between the two boundary entries - O(log n), never a walk.
func (sl *skipList[K]) countInRange(r scoreRange) int64 {
	first := sl.firstInRange(r)
	if first == nilLink {
		return 0
	}

	// Entries from the first boundary to the end...
	node := &sl.arena[first]
	count := sl.length - (sl.rankOf(node.score, node.key) - 1)

	// ...minus the entries past the last boundary.
	last := sl.lastInRange(r)
	if last != nilLink {
		node = &sl.arena[last]
		count -= sl.length - sl.rankOf(node.score, node.key)
	}
	return count
}

// ═══════════════════════════════════════════════════════════════════════════════
// RANGE DELETION
// ═══════════════════════════════════════════════════════════════════════════════
// Both range deletions descend ONCE to the node preceding the first victim,
// recording the update array exactly as a single delete would, then repeatedly
// unsplice the node that follows it. The update array stays valid throughout
// because every victim sits strictly after every update node.
//
// Each removed entry is reported through onRemove so the layer above can keep
// its lookup dict (and any derived state) in lock-step.
// ═══════════════════════════════════════════════════════════════════════════════

// deleteRangeByScore removes every entry whose score falls inside the range
// and returns how many were removed.
func (sl *skipList[K]) deleteRangeByScore(r scoreRange, onRemove func(key K, score float64)) int {
	var update [MaxHeight]uint32

	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink || r.gteMin(sl.arena[fwd].score) {
				break
			}
			x = fwd
		}
		update[i] = x
	}

	removed := 0
	x = sl.arena[x].levels[0].forward
	for x != nilLink && r.lteMax(sl.arena[x].score) {
		node := &sl.arena[x]
		next := node.levels[0].forward
		key, score := node.key, node.score

		sl.unsplice(x, &update)
		sl.release(x)
		if onRemove != nil {
			onRemove(key, score)
		}
		removed++
		x = next
	}
	return removed
}

// deleteRangeByRank removes entries ranked start..end inclusive (1-based) and
// returns how many were removed. The facade translates external 0-based
// windows (including negative offsets) before calling in.
func (sl *skipList[K]) deleteRangeByRank(start, end int64, onRemove func(key K, score float64)) int {
	var update [MaxHeight]uint32
	var traversed int64

	x := headerNode
	for i := sl.height - 1; i >= 0; i-- {
		for {
			fwd := sl.arena[x].levels[i].forward
			if fwd == nilLink || traversed+sl.arena[x].levels[i].span >= start {
				break
			}
			traversed += sl.arena[x].levels[i].span
			x = fwd
		}
		update[i] = x
	}

	removed := 0
	traversed++
	x = sl.arena[x].levels[0].forward
	for x != nilLink && traversed <= end {
		node := &sl.arena[x]
		next := node.levels[0].forward
		key, score := node.key, node.score

		sl.unsplice(x, &update)
		sl.release(x)
		if onRemove != nil {
			onRemove(key, score)
		}
		removed++
		traversed++
		x = next
	}
	return removed
}
