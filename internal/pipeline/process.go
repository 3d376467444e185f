package pipeline

import (
	"fmt"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/txn"
	"github.com/empower1/ledger/internal/vote"
)

// phaseRank orders the three transaction kinds a proposal may carry (spec
// §4.4: "protocol first, then wrappers, then decrypteds"). KindRaw never
// appears in a finalized proposal; it is rejected outright.
func phaseRank(k txn.Kind) (int, bool) {
	switch k {
	case txn.KindProtocol:
		return 0, true
	case txn.KindWrapper:
		return 1, true
	case txn.KindDecrypted:
		return 2, true
	default:
		return 0, false
	}
}

// ProcessProposal re-derives every check PrepareProposal already applied,
// without mutating storage, so a Byzantine proposer's block is rejected
// identically by every honest validator (spec §6). Grounded in the
// teacher's internal/consensus/validation.go staged-check discipline,
// generalized from single-proposer continuity checks to the spec's
// per-tx-kind invariants.
func (p *Pipeline) ProcessProposal(req ProcessProposalRequest) (Decision, error) {
	currentEpoch := p.Epochs.EpochAt(req.Height)
	_, haveVS := p.validatorSetAt(currentEpoch)

	queueSnapshot := p.Queue.Snapshot()
	decryptedIdx := 0
	phase := 0

	for _, tx := range req.Txs {
		if tx == nil {
			return Reject, ErrNilBlock
		}
		kind, body, err := txn.Classify(tx)
		if err != nil {
			return Reject, err
		}
		rank, ok := phaseRank(kind)
		if !ok {
			return Reject, fmt.Errorf("%w: kind %s not permitted in a finalized proposal", ErrTxOutOfOrder, kind)
		}
		if rank < phase {
			return Reject, ErrTxOutOfOrder
		}
		phase = rank

		switch kind {
		case txn.KindProtocol:
			proto := body.(txn.Protocol)
			if proto.Kind != txn.ProtocolEthEventsDigest {
				continue
			}
			digest, err := decodeDigest(proto.Payload)
			if err != nil {
				return Reject, err
			}
			lastVS, ok := p.validatorSetAt(p.Epochs.EpochAt(req.Height - 1))
			if !ok {
				return Reject, ErrUnknownValidatorSet
			}
			if err := vote.VerifyDigest(digest, lastVS); err != nil {
				return Reject, fmt.Errorf("%w: %v", ErrDigestQuorumViolation, err)
			}

		case txn.KindWrapper:
			w := body.(txn.Wrapper)
			if err := tx.VerifySignature(); err != nil {
				return Reject, err
			}
			if w.Fee < p.cfg.GasPriceFloor*w.GasLimit {
				return Reject, ErrFeeBelowFloor
			}
			if w.Epoch != currentEpoch {
				return Reject, ErrEpochMismatch
			}
			if w.PublicKey == nil {
				return Reject, ErrMissingPayerKey
			}
			payer, err := address.Implicit(w.PublicKey)
			if err != nil {
				return Reject, err
			}
			bal, err := p.ledger.Balance(p.Storage, payer)
			if err != nil {
				return Reject, err
			}
			if w.Unshield != nil {
				amount, err := p.Unshield.Verify(payer, w.Unshield, w.Epoch)
				if err != nil {
					return Reject, err
				}
				bal += amount
			}
			if bal < w.Fee {
				return Reject, ErrInsufficientBalance
			}

		case txn.KindDecrypted:
			d := body.(txn.Decrypted)
			entry, ok := p.queueEntryAt(queueSnapshot, decryptedIdx)
			if !ok {
				return Reject, ErrQueueSlotMismatch
			}
			if !d.Undecryptable {
				if committedHash(d.Inner) != entry.CommittedHash {
					return Reject, ErrPayloadHashMismatch
				}
			}
			decryptedIdx++
		}
	}

	if !haveVS && phase >= 1 {
		return Reject, ErrUnknownValidatorSet
	}
	return Accept, nil
}
