package lsm

// WorkUnit is an immutable descriptor for one pending maintenance task: its
// kind and the tree it targets. A unit is created by the pusher, resides in
// exactly one queue at a time, and is owned exclusively by the worker that
// pops it until that worker destroys it by letting it go out of scope.
type WorkUnit struct {
	kind WorkKind
	tree Tree
}

// NewWorkUnit allocates a WorkUnit. Callers push it onto a QueueSet
// immediately; nothing else constructs one.
func NewWorkUnit(kind WorkKind, tree Tree) *WorkUnit {
	return &WorkUnit{kind: kind, tree: tree}
}

// Kind returns the unit's kind.
func (u *WorkUnit) Kind() WorkKind { return u.kind }

// Tree returns the unit's target tree.
func (u *WorkUnit) Tree() Tree { return u.tree }
