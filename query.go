package zrank

import (
	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MEMBER QUERY: Boolean Queries over Board Membership
// ═══════════════════════════════════════════════════════════════════════════════
// Cross-board membership questions compose with a fluent builder instead of
// N map lookups per member:
//
// EXAMPLE USAGE:
// --------------
// Members on "daily" AND "weekly":
//
//	members := store.Query().
//	    Board("daily").
//	    And().
//	    Board("weekly").
//	    Members()
//
// Members on ("eu" OR "us") but NOT "banned":
//
//	members := store.Query().
//	    Group(func(q *MemberQuery) {
//	        q.Board("eu").Or().Board("us")
//	    }).
//	    And().Not().Board("banned").
//	    Members()
//
// Every operation folds roaring bitmaps, so the cost scales with compressed
// bitmap chunks rather than with board sizes.
// ═══════════════════════════════════════════════════════════════════════════════

// MemberQuery accumulates boards and boolean operations, then resolves the
// folded bitmap back to member names.
type MemberQuery struct {
	store  *Store
	stack  []*roaring.Bitmap // Intermediate membership results
	ops    []queryOp         // Pending operations between stack entries
	negate bool              // Whether the next board is negated
}

// queryOp is a pending boolean operation between two stack entries.
type queryOp int

const (
	opAnd queryOp = iota
	opOr
)

// Query starts a new member query against the store.
func (st *Store) Query() *MemberQuery {
	return &MemberQuery{store: st}
}

// Board pushes the named board's membership. Unknown boards contribute an
// empty membership, which folds like any other.
func (q *MemberQuery) Board(name string) *MemberQuery {
	q.store.mu.Lock()
	bitmap := q.store.membership(name)
	if q.negate {
		bitmap = roaring.AndNot(q.store.universe(), bitmap)
		q.negate = false
	}
	q.store.mu.Unlock()

	q.stack = append(q.stack, bitmap)
	return q
}

// And combines the previous and next operand by intersection.
func (q *MemberQuery) And() *MemberQuery {
	q.ops = append(q.ops, opAnd)
	return q
}

// Or combines the previous and next operand by union.
func (q *MemberQuery) Or() *MemberQuery {
	q.ops = append(q.ops, opOr)
	return q
}

// Not negates the next operand against the universe of members currently on
// any board.
func (q *MemberQuery) Not() *MemberQuery {
	q.negate = true
	return q
}

// Group evaluates a sub-query in its own scope and pushes its result,
// controlling operator precedence:
//
//	store.Query().
//	    Group(func(q *MemberQuery) { q.Board("eu").Or().Board("us") }).
//	    And().Board("premium")
//	// → (eu OR us) AND premium
func (q *MemberQuery) Group(fn func(*MemberQuery)) *MemberQuery {
	sub := q.store.Query()
	fn(sub)
	result := sub.Execute()

	if q.negate {
		q.store.mu.Lock()
		result = roaring.AndNot(q.store.universe(), result)
		q.store.mu.Unlock()
		q.negate = false
	}

	q.stack = append(q.stack, result)
	return q
}

// Execute folds the accumulated operands left to right and returns the
// resulting bitmap of member IDs. An empty query yields an empty bitmap.
func (q *MemberQuery) Execute() *roaring.Bitmap {
	if len(q.stack) == 0 {
		return roaring.NewBitmap()
	}

	result := q.stack[0]
	for i := 1; i < len(q.stack); i++ {
		if i-1 >= len(q.ops) {
			break
		}
		switch q.ops[i-1] {
		case opAnd:
			result = roaring.And(result, q.stack[i])
		case opOr:
			result = roaring.Or(result, q.stack[i])
		}
	}
	return result
}

// Members executes the query and resolves the result to sorted member names.
func (q *MemberQuery) Members() []string {
	result := q.Execute()

	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	return q.store.resolveMembers(result)
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVENIENCE WRAPPERS FOR COMMON PATTERNS
// ═══════════════════════════════════════════════════════════════════════════════

// AllOf returns the members present on EVERY one of the given boards.
func AllOf(store *Store, boards ...string) []string {
	if len(boards) == 0 {
		return nil
	}

	q := store.Query().Board(boards[0])
	for i := 1; i < len(boards); i++ {
		q.And().Board(boards[i])
	}
	return q.Members()
}

// AnyOf returns the members present on AT LEAST one of the given boards.
func AnyOf(store *Store, boards ...string) []string {
	if len(boards) == 0 {
		return nil
	}

	q := store.Query().Board(boards[0])
	for i := 1; i < len(boards); i++ {
		q.Or().Board(boards[i])
	}
	return q.Members()
}

// OnlyOn returns the members present on the include board but absent from
// the exclude board.
func OnlyOn(store *Store, include, exclude string) []string {
	return store.Query().
		Board(include).
		And().Not().Board(exclude).
		Members()
}
