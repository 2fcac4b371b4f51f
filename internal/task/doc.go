// Package task owns the ordered task collection.
//
// The Store serializes every mutation (create, overwrite, toggle, delete,
// mark-fired) behind one lock, so the conflict check for a candidate and the
// commit that follows it always observe the same snapshot. The whole ordered
// sequence is persisted under a single key after each mutation and loaded
// once at startup.
//
// ComputeConflicts is the pure conflict resolver; DraftEditor layers the
// debounced recomputation used while a draft is being edited on top of it.
package task
