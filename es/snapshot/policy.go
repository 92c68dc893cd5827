package snapshot

// Policy decides when an aggregate deserves a new checkpoint. Policies are
// owned by the caller (the engine never snapshots on its own); they exist so
// "snapshot every N events" does not get reinvented per application.
type Policy interface {
	// ShouldSnapshot reports whether a snapshot should be taken, given the
	// version of the last snapshot (0 if none) and the aggregate's current
	// version.
	ShouldSnapshot(lastSnapshotVersion, currentVersion int64) bool
}

// EveryN snapshots once at least N events have accumulated since the last
// checkpoint.
type EveryN struct {
	N int64
}

// ShouldSnapshot implements Policy.
func (p EveryN) ShouldSnapshot(lastSnapshotVersion, currentVersion int64) bool {
	if p.N < 1 {
		return false
	}
	return currentVersion-lastSnapshotVersion >= p.N
}

// Never is a Policy that never snapshots. Useful as an explicit default.
type Never struct{}

// ShouldSnapshot implements Policy.
func (Never) ShouldSnapshot(_, _ int64) bool { return false }
