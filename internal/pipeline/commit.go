package pipeline

// Commit folds the block-level write-log into committed storage, advances
// the queue past the slots resolved this block, enqueues the wrappers
// accepted this block, and returns the resulting app hash (spec §4.4
// Commit step, §6).
func (p *Pipeline) Commit() ([32]byte, error) {
	for _, entry := range p.Queue.Snapshot()[:min(p.resolvedSlots, p.Queue.Len())] {
		if err := p.Storage.Delete(queueStorageKey(entry.PartialHash)); err != nil {
			return [32]byte{}, err
		}
	}
	p.Queue.Advance(p.resolvedSlots)
	for _, e := range p.pendingEnqueue {
		p.Queue.Enqueue(e)
	}
	p.pendingEnqueue = nil
	p.resolvedSlots = 0

	root, err := p.Storage.FoldBlock()
	if err != nil {
		return [32]byte{}, err
	}
	if p.Metrics != nil {
		p.Metrics.QueueDepth.Set(float64(p.Queue.Len()))
		p.Metrics.BridgePoolPending.Set(float64(len(p.Bridge.Pending())))
	}
	return root, nil
}
