package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/empower1/ledger/internal/queue"
	"github.com/empower1/ledger/internal/txn"
	"github.com/empower1/ledger/internal/vote"
)

func encodeDigest(d vote.EventDigest) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDigest(b []byte) (vote.EventDigest, error) {
	var d vote.EventDigest
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&d)
	return d, err
}

func ceilDiv(n, d int) int {
	if d <= 0 {
		return n
	}
	return (n + d - 1) / d
}

// PrepareProposal composes a block in the three-part order spec §4.4
// describes: an optional protocol tx aggregating the prior height's vote
// extensions, a capped subset of mempool wrappers, and the decrypted
// replay of the currently-queued wrappers — grounded in the teacher's
// internal/consensus/proposer.go proposal-construction loop, generalized
// from a single transaction list to the spec's three ordered phases.
func (p *Pipeline) PrepareProposal(req PrepareProposalRequest) (PrepareProposalResponse, error) {
	var resp PrepareProposalResponse

	// Phase 1: protocol tx from the previous height's vote extensions.
	if req.Height > 1 && len(req.LastCommitVoteExtensions) > 0 {
		lastHeight := req.Height - 1
		vs, ok := p.validatorSetAt(p.Epochs.EpochAt(lastHeight))
		if ok {
			digest := vote.Aggregate(req.LastCommitVoteExtensions, lastHeight, vs, p)
			if len(digest.Events) > 0 {
				payload, err := encodeDigest(digest)
				if err == nil {
					tx := txn.New(nil, txn.EncodeProtocol(txn.Protocol{Kind: txn.ProtocolEthEventsDigest, Payload: payload}))
					if p.cfg.ProtocolKey != nil {
						_ = tx.Sign(p.cfg.ProtocolKey)
					}
					resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionAdd, Tx: tx})
				}
			}
		}
	}

	// Phase 2: mempool wrappers, capped at ⌈n/2⌉+1 (spec §4.4 step 2).
	maxKept := ceilDiv(len(req.MempoolTxs), p.cfg.MaxMempoolFrac) + 1
	kept := 0
	for _, m := range req.MempoolTxs {
		kind, _, err := txn.Classify(m.Tx)
		if err != nil || kind != txn.KindWrapper {
			resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionRemove, Tx: m.Tx})
			continue
		}
		if err := m.Tx.VerifySignature(); err != nil {
			resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionRemove, Tx: m.Tx})
			continue
		}
		if kept >= maxKept {
			resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionRemove, Tx: m.Tx})
			continue
		}
		resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionKeep, Tx: m.Tx})
		kept++
	}

	// Phase 3: decrypted replay of the queue, in exact FIFO order (spec
	// §4.3 "Ordering"; §4.4 step 3).
	for _, entry := range p.Queue.Snapshot() {
		payload, ok, err := p.Storage.Read(queueStorageKey(entry.PartialHash))
		if err != nil || !ok {
			dec := txn.New(nil, txn.EncodeDecrypted(txn.Decrypted{Undecryptable: true}))
			resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionAdd, Tx: dec})
			continue
		}
		inner, ok := p.Decryptor.Decrypt(context.Background(), entry.PartialHash, payload)
		if !ok {
			dec := txn.New(nil, txn.EncodeDecrypted(txn.Decrypted{Undecryptable: true}))
			resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionAdd, Tx: dec})
			continue
		}
		dec := txn.New(nil, txn.EncodeDecrypted(txn.Decrypted{Inner: inner}))
		resp.TxRecords = append(resp.TxRecords, TxRecord{Action: ActionAdd, Tx: dec})
	}

	return resp, nil
}

// queueEntryAt is a small helper shared by process.go/finalize.go to fetch
// the queue.Entry a decrypted tx at position idx within the block must
// correspond to.
func (p *Pipeline) queueEntryAt(snapshot []queue.Entry, idx int) (queue.Entry, bool) {
	if idx < 0 || idx >= len(snapshot) {
		return queue.Entry{}, false
	}
	return snapshot[idx], true
}
