package pos

// EpochManager advances the monotonically increasing epoch counter on a
// configurable block-count boundary and snapshots the validator set for
// use by both governance windows and the vote-extension aggregator (spec
// §3: "Epoch: ... advancing on time-based boundaries"; this core uses a
// block-count boundary, a deterministic proxy for wall-clock time that
// every validator computes identically).
type EpochManager struct {
	blocksPerEpoch uint64
	snapshots      map[uint64]*ValidatorSet
}

// NewEpochManager builds a manager that advances the epoch every
// blocksPerEpoch blocks.
func NewEpochManager(blocksPerEpoch uint64) *EpochManager {
	if blocksPerEpoch == 0 {
		blocksPerEpoch = 1
	}
	return &EpochManager{
		blocksPerEpoch: blocksPerEpoch,
		snapshots:      make(map[uint64]*ValidatorSet),
	}
}

// EpochAt returns the epoch number that height h falls within.
func (m *EpochManager) EpochAt(h uint64) uint64 {
	return h / m.blocksPerEpoch
}

// CrossesBoundary reports whether applying block h moves the chain into a
// new epoch relative to h-1.
func (m *EpochManager) CrossesBoundary(h uint64) bool {
	if h == 0 {
		return false
	}
	return m.EpochAt(h) != m.EpochAt(h-1)
}

// Snapshot records the validator set in effect for an epoch, so later
// lookups (governance tally, vote-extension quorum checks) see a stable
// view even as stake changes in subsequent epochs.
func (m *EpochManager) Snapshot(vs *ValidatorSet) {
	m.snapshots[vs.Epoch] = vs
}

// At returns the validator-set snapshot for epoch, if one was recorded.
func (m *EpochManager) At(epoch uint64) (*ValidatorSet, bool) {
	vs, ok := m.snapshots[epoch]
	return vs, ok
}
