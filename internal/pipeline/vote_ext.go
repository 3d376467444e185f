package pipeline

import "github.com/empower1/ledger/internal/vote"

// ExtendVote drains the oracle events buffered since this validator's last
// signed extension and returns a fresh VoteExtension stamped with the last
// committed height (spec §4.5, §6).
func (p *Pipeline) ExtendVote(req ExtendVoteRequest) (vote.VoteExtension, error) {
	ext := vote.VoteExtension{
		ValidatorAddr: p.cfg.SelfAddress,
		BlockHeight:   p.height,
		Events:        p.pendingExtensionEvents,
	}
	p.pendingExtensionEvents = nil
	if p.cfg.ProtocolKey != nil {
		if err := ext.Sign(p.cfg.ProtocolKey); err != nil {
			return vote.VoteExtension{}, err
		}
	}
	return ext, nil
}

// VerifyVoteExtension applies the §4.5 filter rules to a peer's extension
// before it is counted toward the next height's aggregation: the signer
// must be a member of the current validator set, its signature must be
// valid under its registered protocol key, and its height must match this
// node's last committed height.
func (p *Pipeline) VerifyVoteExtension(req VerifyVoteExtensionRequest) Decision {
	ext := req.Extension
	if ext.BlockHeight != p.height {
		return Reject
	}
	vs, ok := p.validatorSetAt(p.Epochs.EpochAt(p.height))
	if !ok || !vs.Contains(ext.ValidatorAddr) {
		return Reject
	}
	pub, ok := p.ProtocolKey(ext.ValidatorAddr)
	if !ok || !ext.Verify(pub) {
		return Reject
	}
	return Accept
}
