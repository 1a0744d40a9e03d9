package zrank

import (
	"golang.org/x/exp/constraints"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SORTED SET: Two Indexes, Always in Sync
// ═══════════════════════════════════════════════════════════════════════════════
// A SortedSet pairs two structures and keeps them mirrored under every
// mutation:
//
//	SortedSet
//	├── dict: map[K]float64   (LOOKUP INDEX)
//	│     "does key K exist, and at what score?" in O(1);
//	│     the single source of truth for key uniqueness
//	└── list: *skipList[K]    (ORDERED INDEX)
//	      entries ordered by (score, key) with per-level spans;
//	      rank and range queries in O(log n)
//
// Every mutating call first consults the dict for the key's current score,
// then updates the skip list, then the dict - no state observable through the
// public surface ever has the two disagreeing.
//
// WHY BOTH?
// ---------
// A map alone cannot answer "who is ranked 5th"; a skip list alone needs
// O(log n) and the exact score to find a key. Together, score lookups are
// O(1) and everything rank-shaped is O(log n).
//
// A SortedSet is not safe for concurrent mutation; either confine it to one
// goroutine or synchronize externally (the Store in store.go does the
// latter). Distinct instances are fully independent.
// ═══════════════════════════════════════════════════════════════════════════════

// Entry is a (key, score) pair as returned by with-scores range queries and
// iterators.
type Entry[K constraints.Ordered] struct {
	Key   K
	Score float64
}

// SortedSet is an in-process ordered set: unique keys ranked by a float64
// score, with equal scores ordered by key.
type SortedSet[K constraints.Ordered] struct {
	dict map[K]float64
	list *skipList[K]
}

// New creates an empty sorted set with the default skip list tuning.
func New[K constraints.Ordered]() *SortedSet[K] {
	return NewWithParams[K](DefaultListParams())
}

// NewWithParams creates an empty sorted set with explicit skip list tuning.
// Out-of-range parameters fall back to the defaults.
func NewWithParams[K constraints.Ordered](params ListParams) *SortedSet[K] {
	return &SortedSet[K]{
		dict: make(map[K]float64),
		list: newSkipList[K](params),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// MUTATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Add inserts key at the given score, or moves it there if it already exists.
// Re-adding a key at its current score is a no-op: scores are compared for
// exact equality, and the structure is left untouched.
//
// A score change is a delete-then-insert on the ordered index - the entry's
// position is defined by its score, so it must be re-spliced, not edited in
// place.
func (s *SortedSet[K]) Add(key K, score float64) {
	if current, ok := s.dict[key]; ok {
		if current == score {
			return
		}
		s.list.delete(current, key)
		s.list.insert(score, key)
		s.dict[key] = score
		return
	}

	s.list.insert(score, key)
	s.dict[key] = score
}

// IncrBy adds delta to the key's score and returns the new score. An absent
// key is treated as a fresh add at exactly delta.
func (s *SortedSet[K]) IncrBy(key K, delta float64) float64 {
	current, ok := s.dict[key]
	if !ok {
		s.list.insert(delta, key)
		s.dict[key] = delta
		return delta
	}

	score := current + delta
	if score != current {
		s.list.delete(current, key)
		s.list.insert(score, key)
		s.dict[key] = score
	}
	return score
}

// Remove deletes the key from the set. Removing an absent key is a no-op;
// the return value reports whether anything was removed.
func (s *SortedSet[K]) Remove(key K) bool {
	score, ok := s.dict[key]
	if !ok {
		return false
	}
	s.list.delete(score, key)
	delete(s.dict, key)
	return true
}

// RemoveRangeByScore deletes every entry whose score falls inside the
// interval and returns how many were removed. minEx/maxEx make the
// corresponding bound exclusive.
func (s *SortedSet[K]) RemoveRangeByScore(min, max float64, minEx, maxEx bool) int {
	return s.removeRangeByScore(min, max, minEx, maxEx, nil)
}

// removeRangeByScore additionally reports each evicted entry to onRemove, so
// layers that mirror membership (the Store's bitmaps) can stay in lock-step.
func (s *SortedSet[K]) removeRangeByScore(min, max float64, minEx, maxEx bool, onRemove func(key K, score float64)) int {
	r := scoreRange{min: min, max: max, minEx: minEx, maxEx: maxEx}
	return s.list.deleteRangeByScore(r, func(key K, score float64) {
		delete(s.dict, key)
		if onRemove != nil {
			onRemove(key, score)
		}
	})
}

// RemoveRangeByRank deletes the entries in the 0-based rank window
// [start, end], both inclusive, and returns how many were removed. Negative
// indices count from the end: -1 is the last entry, so (0, -1) empties the
// whole set. Out-of-range windows remove nothing.
func (s *SortedSet[K]) RemoveRangeByRank(start, end int) int {
	return s.removeRangeByRank(start, end, nil)
}

// removeRangeByRank additionally reports each evicted entry to onRemove.
func (s *SortedSet[K]) removeRangeByRank(start, end int, onRemove func(key K, score float64)) int {
	llen := int(s.list.length)
	if start < 0 {
		start = llen + start
	}
	if end < 0 {
		end = llen + end
	}
	if start < 0 {
		start = 0
	}
	if start > end || start >= llen {
		return 0
	}
	if end >= llen {
		end = llen - 1
	}

	// The skip list counts ranks from 1.
	return s.list.deleteRangeByRank(int64(start)+1, int64(end)+1, func(key K, score float64) {
		delete(s.dict, key)
		if onRemove != nil {
			onRemove(key, score)
		}
	})
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOOKUPS
// ═══════════════════════════════════════════════════════════════════════════════
// Absence is an ordinary result here, reported through the ok bool - it is
// never an error.
// ═══════════════════════════════════════════════════════════════════════════════

// Len returns the number of entries in the set.
func (s *SortedSet[K]) Len() int {
	return int(s.list.length)
}

// Score returns the key's current score.
func (s *SortedSet[K]) Score(key K) (float64, bool) {
	score, ok := s.dict[key]
	return score, ok
}

// Rank returns the key's 0-based position counting from the lowest score.
//
// Example: after Add("a", 1), Add("b", 2), Add("c", 3):
//
//	Rank("a") → 0    Rank("c") → 2
func (s *SortedSet[K]) Rank(key K) (int, bool) {
	score, ok := s.dict[key]
	if !ok {
		return 0, false
	}
	// rankOf is 1-based; 0 cannot come back since the dict gave us the
	// entry's exact score.
	return int(s.list.rankOf(score, key) - 1), true
}

// RevRank returns the key's 0-based position counting from the highest score.
//
// Example: after Add("a", 1), Add("b", 2), Add("c", 3):
//
//	RevRank("c") → 0    RevRank("a") → 2
func (s *SortedSet[K]) RevRank(key K) (int, bool) {
	score, ok := s.dict[key]
	if !ok {
		return 0, false
	}
	return int(s.list.length - s.list.rankOf(score, key)), true
}

// Count returns how many entries have scores inside the interval. Computed
// from boundary ranks in O(log n), not by walking the range.
func (s *SortedSet[K]) Count(min, max float64, minEx, maxEx bool) int {
	return int(s.list.countInRange(scoreRange{min: min, max: max, minEx: minEx, maxEx: maxEx}))
}

// ═══════════════════════════════════════════════════════════════════════════════
// RANGE QUERIES BY RANK
// ═══════════════════════════════════════════════════════════════════════════════
// All rank windows are 0-based and inclusive on both ends, with negative
// indices resolved from the end (-1 = last entry, as in s.Range(0, -1) for
// "everything"). Windows that resolve to nothing yield an empty result, never
// an error.
// ═══════════════════════════════════════════════════════════════════════════════

// walkByRank visits the entries in the resolved window in rank order
// (reversed when asked), locating the starting entry via the span index when
// the offset is non-trivial.
func (s *SortedSet[K]) walkByRank(start, end int, reverse bool, visit func(key K, score float64)) {
	llen := int(s.list.length)
	if start < 0 {
		start = llen + start
	}
	if end < 0 {
		end = llen + end
	}
	if start < 0 {
		start = 0
	}
	if start > end || start >= llen {
		return
	}
	if end >= llen {
		end = llen - 1
	}
	remaining := end - start + 1

	// Trivial starting points skip the O(log n) positioning entirely.
	var x uint32
	if reverse {
		x = s.list.tail
		if start > 0 {
			x = s.list.nodeAtRank(int64(llen - start))
		}
	} else {
		x = s.list.first()
		if start > 0 {
			x = s.list.nodeAtRank(int64(start) + 1)
		}
	}

	for ; remaining > 0 && x != nilLink; remaining-- {
		node := &s.list.arena[x]
		visit(node.key, node.score)
		if reverse {
			x = node.backward
		} else {
			x = node.levels[0].forward
		}
	}
}

// Range returns the keys ranked [start, end], lowest score first.
func (s *SortedSet[K]) Range(start, end int) []K {
	var keys []K
	s.walkByRank(start, end, false, func(key K, _ float64) {
		keys = append(keys, key)
	})
	return keys
}

// RevRange returns the keys ranked [start, end] counting from the highest
// score, highest first. RevRange(0, 2) is the top three.
func (s *SortedSet[K]) RevRange(start, end int) []K {
	var keys []K
	s.walkByRank(start, end, true, func(key K, _ float64) {
		keys = append(keys, key)
	})
	return keys
}

// RangeWithScores is Range with each key's score attached.
func (s *SortedSet[K]) RangeWithScores(start, end int) []Entry[K] {
	var entries []Entry[K]
	s.walkByRank(start, end, false, func(key K, score float64) {
		entries = append(entries, Entry[K]{Key: key, Score: score})
	})
	return entries
}

// RevRangeWithScores is RevRange with each key's score attached.
func (s *SortedSet[K]) RevRangeWithScores(start, end int) []Entry[K] {
	var entries []Entry[K]
	s.walkByRank(start, end, true, func(key K, score float64) {
		entries = append(entries, Entry[K]{Key: key, Score: score})
	})
	return entries
}

// ═══════════════════════════════════════════════════════════════════════════════
// RANGE QUERIES BY SCORE
// ═══════════════════════════════════════════════════════════════════════════════
// min/max always name the low and high interval bounds, for forward and
// reverse queries alike; the direction only controls result order. (Reverse
// queries walk the backward chain from the last in-range entry.)
// ═══════════════════════════════════════════════════════════════════════════════

// walkByScore visits the in-range entries in score order (descending when
// reversed), starting from the boundary entry located in O(log n).
func (s *SortedSet[K]) walkByScore(r scoreRange, reverse bool, visit func(key K, score float64)) {
	var x uint32
	if reverse {
		x = s.list.lastInRange(r)
	} else {
		x = s.list.firstInRange(r)
	}

	for x != nilLink {
		node := &s.list.arena[x]

		// Stop as soon as we leave the interval.
		if reverse {
			if !r.gteMin(node.score) {
				break
			}
		} else {
			if !r.lteMax(node.score) {
				break
			}
		}

		visit(node.key, node.score)
		if reverse {
			x = node.backward
		} else {
			x = node.levels[0].forward
		}
	}
}

// RangeByScore returns the keys with scores inside the interval, ascending.
func (s *SortedSet[K]) RangeByScore(min, max float64, minEx, maxEx bool) []K {
	var keys []K
	s.walkByScore(scoreRange{min: min, max: max, minEx: minEx, maxEx: maxEx}, false, func(key K, _ float64) {
		keys = append(keys, key)
	})
	return keys
}

// RevRangeByScore returns the keys with scores inside the interval,
// descending.
func (s *SortedSet[K]) RevRangeByScore(min, max float64, minEx, maxEx bool) []K {
	var keys []K
	s.walkByScore(scoreRange{min: min, max: max, minEx: minEx, maxEx: maxEx}, true, func(key K, _ float64) {
		keys = append(keys, key)
	})
	return keys
}

// RangeByScoreWithScores is RangeByScore with each key's score attached.
func (s *SortedSet[K]) RangeByScoreWithScores(min, max float64, minEx, maxEx bool) []Entry[K] {
	var entries []Entry[K]
	s.walkByScore(scoreRange{min: min, max: max, minEx: minEx, maxEx: maxEx}, false, func(key K, score float64) {
		entries = append(entries, Entry[K]{Key: key, Score: score})
	})
	return entries
}

// RevRangeByScoreWithScores is RevRangeByScore with each key's score attached.
func (s *SortedSet[K]) RevRangeByScoreWithScores(min, max float64, minEx, maxEx bool) []Entry[K] {
	var entries []Entry[K]
	s.walkByScore(scoreRange{min: min, max: max, minEx: minEx, maxEx: maxEx}, true, func(key K, score float64) {
		entries = append(entries, Entry[K]{Key: key, Score: score})
	})
	return entries
}

// ═══════════════════════════════════════════════════════════════════════════════
// ITERATION
// ═══════════════════════════════════════════════════════════════════════════════
// Iterators walk the level-0 chain (or the backward chain) directly, so a
// full sweep is O(n) with no descents.
//
// USAGE PATTERN:
// --------------
//	it := set.Iterator()
//	for it.HasNext() {
//	    entry := it.Next()
//	    // entry.Key, entry.Score
//	}
//
// Iterators hold no snapshot: mutating the set mid-iteration invalidates
// them.
// ═══════════════════════════════════════════════════════════════════════════════

// Iterator yields entries in ascending (score, key) order.
type Iterator[K constraints.Ordered] struct {
	list    *skipList[K]
	next    uint32
	reverse bool
}

// Iterator returns a forward iterator positioned at the first entry.
func (s *SortedSet[K]) Iterator() *Iterator[K] {
	return &Iterator[K]{list: s.list, next: s.list.first()}
}

// ReverseIterator returns an iterator positioned at the last entry, walking
// toward the first.
func (s *SortedSet[K]) ReverseIterator() *Iterator[K] {
	return &Iterator[K]{list: s.list, next: s.list.tail, reverse: true}
}

// HasNext reports whether another entry remains.
func (it *Iterator[K]) HasNext() bool {
	return it.next != nilLink
}

// Next returns the current entry and advances. Calling it past the end
// returns the zero Entry.
func (it *Iterator[K]) Next() Entry[K] {
	if it.next == nilLink {
		return Entry[K]{}
	}

	node := &it.list.arena[it.next]
	entry := Entry[K]{Key: node.key, Score: node.score}
	if it.reverse {
		it.next = node.backward
	} else {
		it.next = node.levels[0].forward
	}
	return entry
}
