package ir

import "fmt"

// Store is the global, append-only expression arena. It never dedupes:
// every Alloc call returns a fresh ExprId, mirroring the flat Vec-backed
// table of the original compiler. Callers that want hash-consing within
// a single module body go through an FsmCache instead, which dedupes
// before delegating to Store.Alloc.
type Store struct {
	exprs []Expr
}

// NewStore constructs an empty global arena.
func NewStore() *Store {
	return &Store{}
}

// Alloc appends e to the arena and returns its new, never-reused id.
func (s *Store) Alloc(e Expr) ExprId {
	id := ExprId(len(s.exprs))
	s.exprs = append(s.exprs, e)
	return id
}

// Get dereferences an id allocated by this Store.
func (s *Store) Get(id ExprId) Expr {
	return s.exprs[id]
}

// Len reports how many exprs have been allocated.
func (s *Store) Len() int {
	return len(s.exprs)
}

// TypeOf computes the PortDecls of an already-allocated expr, recursing
// through the arena for operand types. Suitable to pass directly as the
// typeOf argument of Expr.PortDecls for sibling exprs in the same Store.
func (s *Store) TypeOf(id ExprId) PortDecls {
	return s.Get(id).PortDecls(s.TypeOf)
}

// exprKey computes a structural equality/hash key for an expr's Kind,
// deliberately excluding Span: fmt's default struct formatting recurses
// into Stringer-implementing fields (PortDecls, Shape), so two
// structurally identical kinds format identically regardless of where
// in source they were built. The pointer-valued fields of ExprStruct and
// ExprCase are dereferenced first, since fmt prints a pointer's address.
func exprKey(k ExprKind) string {
	switch n := k.(type) {
	case ExprStruct:
		names := make([]string, len(n.Names))
		for i, name := range n.Names {
			if name != nil {
				names[i] = "." + *name
			}
		}
		return fmt.Sprintf("%T:%q:%v", k, names, n.Fields)
	case ExprCase:
		if n.Default != nil {
			return fmt.Sprintf("%T:%v:%+v:default=%v", k, n.Scrutinee, n.Items, *n.Default)
		}
	}
	return fmt.Sprintf("%T:%+v", k, k)
}

// FsmCache deduplicates expr allocations within a single module body by
// structural content, so that two semantically identical subexpressions
// built at different points in the lowering of one FSM body collapse to
// the same ExprId. Hit/miss counters back Stats.
type FsmCache struct {
	store  *Store
	index  map[string]ExprId
	trials int
	hits   int
}

// NewFsmCache constructs an FsmCache backed by the given global arena.
// Multiple FsmCache instances may share one Store; each FsmCache only
// dedupes within its own index.
func NewFsmCache(store *Store) *FsmCache {
	return &FsmCache{store: store, index: make(map[string]ExprId)}
}

// Alloc hash-conses e: if a structurally equal expr (ignoring Span) was
// already allocated through this cache, its existing ExprId is returned
// and no new arena slot is consumed; otherwise e is allocated fresh.
func (c *FsmCache) Alloc(e Expr) ExprId {
	c.trials++
	key := exprKey(e.Kind)
	if id, ok := c.index[key]; ok {
		c.hits++
		return id
	}
	id := c.store.Alloc(e)
	c.index[key] = id
	return id
}

// Clear empties the dedup index (and resets the counters) without
// touching the backing Store, for reuse across independent module
// bodies.
func (c *FsmCache) Clear() {
	c.index = make(map[string]ExprId)
	c.trials = 0
	c.hits = 0
}

// Stats renders a human-readable cache effectiveness summary.
func (c *FsmCache) Stats() string {
	return fmt.Sprintf("\n\tTotal trials: %d\n\tNumber of exprs allocated: %d\n\tcache hit: %d",
		c.trials, len(c.index), c.hits)
}

// TypeOf delegates to the backing Store.
func (c *FsmCache) TypeOf(id ExprId) PortDecls {
	return c.store.TypeOf(id)
}

// ThirCache maps a typed-function-IR expression id (owned by package
// thir) to the lowered ExprId it produced. It is keyed by source
// identity rather than structural content, and is populated once per
// function lowering: re-visiting the same thir expr node (e.g. because
// it is referenced from two branches of a match) returns the
// previously lowered result instead of lowering it again, independent
// of whatever FsmCache dedup also applies to the result.
type ThirCache struct {
	inner map[int]ExprId
	hits  int
}

// NewThirCache constructs an empty ThirCache.
func NewThirCache() *ThirCache {
	return &ThirCache{inner: make(map[int]ExprId)}
}

// Get looks up a previously lowered thir expr id.
func (c *ThirCache) Get(thirId int) (ExprId, bool) {
	id, ok := c.inner[thirId]
	if ok {
		c.hits++
	}
	return id, ok
}

// Insert records the lowering result for a thir expr id.
func (c *ThirCache) Insert(thirId int, id ExprId) {
	c.inner[thirId] = id
}

// Stats renders a human-readable cache effectiveness summary.
func (c *ThirCache) Stats() string {
	return fmt.Sprintf("\n\tNumber of thir exprs cached: %d\n\tcache hit: %d", len(c.inner), c.hits)
}
