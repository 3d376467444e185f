package pipeline

import (
	"context"
	"fmt"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/events"
	"github.com/empower1/ledger/internal/gas"
	"github.com/empower1/ledger/internal/governance"
	"github.com/empower1/ledger/internal/pos"
	"github.com/empower1/ledger/internal/queue"
	"github.com/empower1/ledger/internal/storage"
	"github.com/empower1/ledger/internal/txn"
	"github.com/empower1/ledger/internal/vmrun"
	"github.com/empower1/ledger/internal/vote"
)

func protocolNonceKey(kind vote.EventKind) storage.StorageKey[uint64] {
	return storage.NewKey(fmt.Sprintf("protocol/nonce/%d", byte(kind)), storage.Uint64Codec{})
}

// applyProtocolEvent runs the state transition one aggregated Ethereum
// event carries, guarded by a monotonically increasing per-kind nonce so a
// digest replayed across a fork never applies twice (spec §4.4: "apply the
// vote.EventDigest directly, idempotent by nonce").
func (p *Pipeline) applyProtocolEvent(acc storage.Accessor, e vote.EthereumEvent, bus *events.Bus) error {
	nonceKey := protocolNonceKey(e.Kind)
	last, _, err := nonceKey.Get(acc)
	if err != nil {
		return err
	}
	if e.Nonce <= last {
		return nil // already applied
	}
	switch e.Kind {
	case vote.EventTransfersToNamada:
		var t TransferPayload
		if err := gobDecode(e.Payload, &t); err != nil {
			return fmt.Errorf("%w: eth transfer in: %v", ErrMalformedAppTx, err)
		}
		if err := p.ledger.Credit(acc, t.To, t.Amount); err != nil {
			return err
		}
		bus.Emit(events.New(events.TypeEthBridge, events.LevelInfo, map[string]string{
			"direction": "in",
			"to":        t.To.String(),
			"amount":    fmt.Sprint(t.Amount),
		}))
	case vote.EventTransfersToEthereum:
		if len(e.Payload) == 32 {
			var hash [32]byte
			copy(hash[:], e.Payload)
			p.Bridge.Remove(hash)
			bus.Emit(events.New(events.TypeEthBridge, events.LevelInfo, map[string]string{
				"direction": "out-confirmed",
			}))
		}
	case vote.EventValidatorSetUpdate:
		var stakes map[address.Address]uint64
		if err := gobDecode(e.Payload, &stakes); err != nil {
			return fmt.Errorf("%w: valset update: %v", ErrMalformedAppTx, err)
		}
		nextEpoch := p.Epochs.EpochAt(p.height) + 1
		p.Epochs.Snapshot(pos.NewValidatorSet(nextEpoch, stakes))
	}
	return nonceKey.Set(acc, e.Nonce)
}

// resolveWrapper escrows w's fee from its payer and records a queue entry
// to be enqueued at Commit (spec §4.2, §4.4: "charge fees... enqueue for
// h+1").
func (p *Pipeline) resolveWrapper(tx *txn.Transaction, w txn.Wrapper, txIndex int, bus *events.Bus) TxResult {
	p.Storage.BeginTx()
	payer, err := address.Implicit(w.PublicKey)
	if err != nil {
		p.Storage.DiscardTx()
		return TxResult{Error: err}
	}
	if w.Unshield != nil {
		amount, err := p.Unshield.Verify(payer, w.Unshield, w.Epoch)
		if err != nil {
			p.Storage.DiscardTx()
			return TxResult{Error: err}
		}
		if err := p.ledger.Credit(p.Storage, payer, amount); err != nil {
			p.Storage.DiscardTx()
			return TxResult{Error: err}
		}
	}
	if err := p.ledger.Debit(p.Storage, payer, w.Fee); err != nil {
		p.Storage.DiscardTx()
		return TxResult{Error: err}
	}
	if err := p.ledger.Credit(p.Storage, address.FeeEscrow, w.Fee); err != nil {
		p.Storage.DiscardTx()
		return TxResult{Error: err}
	}
	partialHash, err := tx.PartialHash()
	if err != nil {
		p.Storage.DiscardTx()
		return TxResult{Error: err}
	}
	if err := p.Storage.Write(queueStorageKey(partialHash), tx.InnerTx); err != nil {
		p.Storage.DiscardTx()
		return TxResult{Error: err}
	}
	if err := p.Storage.FoldTx(); err != nil {
		return TxResult{Error: err}
	}
	p.pendingEnqueue = append(p.pendingEnqueue, queue.Entry{
		PartialHash:   partialHash,
		Wrapper:       w,
		CommittedHash: committedHash(tx.InnerTx),
	})
	bus.Emit(events.New(events.TypeTransfer, events.LevelInfo, map[string]string{
		"kind":   "wrapper_fee_escrow",
		"payer":  payer.String(),
		"amount": fmt.Sprint(w.Fee),
	}))
	return TxResult{Accepted: true}
}

// resolveDecrypted settles one queue slot: a successful decryption burns
// the full escrowed fee and dispatches the inner tx; an Undecryptable slot
// burns only the declared floor-priced charge and refunds the remainder to
// the payer (Open Question §9 resolution, SPEC_FULL.md §5).
func (p *Pipeline) resolveDecrypted(ctx context.Context, d txn.Decrypted, txIndex int, bus *events.Bus) TxResult {
	snapshot := p.Queue.Snapshot()
	entry, ok := p.queueEntryAt(snapshot, p.resolvedSlots)
	if !ok {
		p.resolvedSlots++
		return TxResult{Error: ErrQueueSlotMismatch}
	}
	p.resolvedSlots++
	payer, err := address.Implicit(entry.Wrapper.PublicKey)
	if err != nil {
		return TxResult{Error: err}
	}

	if d.Undecryptable {
		p.Storage.BeginTx()
		charge := queue.UndecryptableCharge(entry.Wrapper, p.cfg.GasPriceFloor, p.cfg.BaseDecryptGas)
		if err := p.ledger.Debit(p.Storage, address.FeeEscrow, charge); err != nil {
			p.Storage.DiscardTx()
			return TxResult{Error: err}
		}
		if err := p.ledger.Credit(p.Storage, address.SlashPool, charge); err != nil {
			p.Storage.DiscardTx()
			return TxResult{Error: err}
		}
		refund := entry.Wrapper.Fee - charge
		if refund > 0 {
			if err := p.ledger.Debit(p.Storage, address.FeeEscrow, refund); err != nil {
				p.Storage.DiscardTx()
				return TxResult{Error: err}
			}
			if err := p.ledger.Credit(p.Storage, payer, refund); err != nil {
				p.Storage.DiscardTx()
				return TxResult{Error: err}
			}
		}
		if err := p.Storage.FoldTx(); err != nil {
			return TxResult{Error: err}
		}
		bus.Emit(events.New(events.TypeTransfer, events.LevelWarn, map[string]string{
			"kind":   "wrapper_undecryptable",
			"payer":  payer.String(),
			"charge": fmt.Sprint(charge),
			"refund": fmt.Sprint(refund),
		}))
		return TxResult{Accepted: false}
	}

	p.Storage.BeginTx()
	if err := p.ledger.Debit(p.Storage, address.FeeEscrow, entry.Wrapper.Fee); err != nil {
		p.Storage.DiscardTx()
		return TxResult{Error: err}
	}
	if err := p.ledger.Credit(p.Storage, address.SlashPool, entry.Wrapper.Fee); err != nil {
		p.Storage.DiscardTx()
		return TxResult{Error: err}
	}
	meter := gas.NewMeter(entry.Wrapper.GasLimit)
	if err := p.dispatch(ctx, p.Storage, payer, meter, bus, txIndex, d.Inner); err != nil {
		p.Storage.DiscardTx()
		return TxResult{GasUsed: meter.Consumed(), Error: err}
	}
	if err := p.Storage.FoldTx(); err != nil {
		return TxResult{GasUsed: meter.Consumed(), Error: err}
	}
	return TxResult{Accepted: true, GasUsed: meter.Consumed()}
}

// runEpochHousekeeping tallies every proposal whose voting window has
// closed, executes its code if it passed and carries any, moves its
// locked funds from the governance escrow to the author or the slash
// pool, rotates the conversion table, and carries the closing epoch's
// validator set forward as the incoming epoch's snapshot when none has
// been recorded for it (spec §4.4 step 3, §4.6).
func (p *Pipeline) runEpochHousekeeping(ctx context.Context, h uint64, bus *events.Bus) error {
	nextEpoch := p.Epochs.EpochAt(h)
	vs, ok := p.validatorSetAt(nextEpoch - 1)
	if !ok {
		vs, ok = p.validatorSetAt(nextEpoch)
	}
	if _, have := p.validatorSetAt(nextEpoch); ok && !have {
		stakes := make(map[address.Address]uint64)
		for _, a := range vs.Validators() {
			stakes[a], _ = vs.Stake(a)
		}
		p.Epochs.Snapshot(pos.NewValidatorSet(nextEpoch, stakes))
	}

	var proposalErr error
	_ = p.Storage.Iterate("gov/", func(key string, value []byte) bool {
		var prop governance.Proposal
		dec := storage.GobCodec[governance.Proposal]{}
		v, err := dec.Decode(value)
		if err != nil {
			return true
		}
		prop = v
		if prop.VotingEndEpoch > nextEpoch-1 || prop.Status != governance.StatusVotingPeriod {
			return true
		}
		if !ok {
			proposalErr = ErrUnknownValidatorSet
			return false
		}
		if err := p.settleProposal(ctx, &prop, vs, bus); err != nil {
			proposalErr = err
			return false
		}
		return true
	})
	if proposalErr != nil {
		return proposalErr
	}

	return p.Conversion.UpdateAtEpoch(nextEpoch)
}

func (p *Pipeline) settleProposal(ctx context.Context, prop *governance.Proposal, vs *pos.ValidatorSet, bus *events.Bus) error {
	tally := governance.Compute(prop, vs, p.cfg.Governance)
	prop.Status = tally.Result

	codeExitOK := true
	if tally.Result == governance.StatusPassed {
		if prop.HasCode() {
			meter := gas.NewMeter(10_000_000)
			block := vmrun.BlockContext{Height: p.height, Timestamp: p.lastBlockTime.Unix()}
			res, err := p.VM.Execute(ctx, prop.Code, p.Storage, meter, bus, address.Governance, prop.Author, block, vmBalances{ledger: p.ledger, acc: p.Storage}, nil)
			codeExitOK = err == nil && res.Accepted
			if codeExitOK {
				prop.Status = governance.StatusExecuted
			} else {
				prop.Status = governance.StatusFailed
			}
		}
	}
	recipient := address.SlashPool
	if prop.Status == governance.StatusPassed || prop.Status == governance.StatusExecuted {
		recipient = prop.Author
	}
	if err := p.ledger.Transfer(p.Storage, address.Governance, recipient, prop.FundsLocked); err != nil {
		return err
	}

	if p.Metrics != nil {
		p.Metrics.GovernanceTallies.WithLabelValues(prop.Status.String()).Inc()
	}
	ev := events.New(events.TypeProposal, events.LevelInfo, map[string]string{
		"proposal_id":               fmt.Sprint(prop.ID),
		"tally_result":              prop.Status.String(),
		"has_proposal_code":         fmt.Sprint(prop.HasCode()),
		"proposal_code_exit_status": fmt.Sprint(codeExitOK),
	})
	ev.TxIndex = -1
	bus.Emit(ev)
	return p.govStore.Put(p.Storage, prop)
}

// FinalizeBlock applies every transaction in a decided proposal, in
// order, each within its own tx-level write-log layer, then runs
// per-epoch housekeeping when the block crosses an epoch boundary (spec
// §4.4, §6).
func (p *Pipeline) FinalizeBlock(ctx context.Context, req FinalizeBlockRequest) (FinalizeBlockResponse, error) {
	p.height = req.Header.Height
	p.lastBlockTime = req.Header.Time
	p.pendingEnqueue = nil
	p.resolvedSlots = 0

	bus := events.NewBus()
	var results []TxResult

	for i, tx := range req.Txs {
		kind, body, err := txn.Classify(tx)
		if err != nil {
			results = append(results, TxResult{Error: err})
			continue
		}
		switch kind {
		case txn.KindProtocol:
			proto := body.(txn.Protocol)
			if proto.Kind != txn.ProtocolEthEventsDigest {
				results = append(results, TxResult{Accepted: true})
				continue
			}
			digest, err := decodeDigest(proto.Payload)
			if err != nil {
				results = append(results, TxResult{Error: err})
				continue
			}
			p.Storage.BeginTx()
			var applyErr error
			for _, mse := range digest.Events {
				if err := p.applyProtocolEvent(p.Storage, mse.Event, bus); err != nil {
					applyErr = err
					break
				}
			}
			if applyErr != nil {
				p.Storage.DiscardTx()
				results = append(results, TxResult{Error: applyErr})
				continue
			}
			if err := p.Storage.FoldTx(); err != nil {
				results = append(results, TxResult{Error: err})
				continue
			}
			results = append(results, TxResult{Accepted: true})

		case txn.KindWrapper:
			w := body.(txn.Wrapper)
			results = append(results, p.resolveWrapper(tx, w, i, bus))

		case txn.KindDecrypted:
			d := body.(txn.Decrypted)
			results = append(results, p.resolveDecrypted(ctx, d, i, bus))

		default:
			results = append(results, TxResult{Error: fmt.Errorf("%w: kind %s", ErrTxOutOfOrder, kind)})
		}
	}

	var updates []ValidatorUpdate
	if p.Epochs.CrossesBoundary(req.Header.Height) {
		if err := p.runEpochHousekeeping(ctx, req.Header.Height, bus); err != nil {
			return FinalizeBlockResponse{}, err
		}
		if vs, ok := p.validatorSetAt(p.Epochs.EpochAt(req.Header.Height)); ok {
			for _, addr := range vs.Validators() {
				stake, _ := vs.Stake(addr)
				updates = append(updates, ValidatorUpdate{Validator: addr, Power: stake})
			}
		}
	}

	if p.Metrics != nil {
		p.Metrics.BlocksFinalized.Inc()
		p.Metrics.QueueDepth.Set(float64(p.Queue.Len() - p.resolvedSlots + len(p.pendingEnqueue)))
	}

	return FinalizeBlockResponse{
		TxResults:        results,
		Events:           bus.Events(),
		ValidatorUpdates: updates,
	}, nil
}
