package pipeline

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/bridge"
	"github.com/empower1/ledger/internal/events"
	"github.com/empower1/ledger/internal/governance"
	"github.com/empower1/ledger/internal/pos"
	"github.com/empower1/ledger/internal/queue"
	"github.com/empower1/ledger/internal/storage"
	"github.com/empower1/ledger/internal/txn"
	"github.com/empower1/ledger/internal/vote"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p := New(storage.NewMemory(), 1, Config{GasPriceFloor: 1, BaseDecryptGas: 100}, nil)
	_, err := p.InitChain(InitChainRequest{Validators: map[address.Address]uint64{}})
	require.NoError(t, err)
	return p
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return sk
}

func TestFinalizeBlock_NoOpBlockAdvancesHeight(t *testing.T) {
	p := newTestPipeline(t)

	resp, err := p.FinalizeBlock(context.Background(), FinalizeBlockRequest{
		Header: BlockHeader{Height: 1, Time: time.Now().UTC()},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.TxResults)
	assert.Empty(t, resp.Events)

	root, err := p.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.height)
	_ = root
}

func TestProcessProposal_RejectsUnsignedWrapper(t *testing.T) {
	p := newTestPipeline(t)

	// No signature, no public key: VerifySignature must fail before any
	// fee or balance check runs (spec §4.2).
	tx := txn.New(nil, txn.EncodeWrapper(txn.Wrapper{Fee: 10, GasLimit: 10, Epoch: 0}))

	decision, err := p.ProcessProposal(ProcessProposalRequest{
		Height: 1,
		Time:   time.Now().UTC(),
		Txs:    []*txn.Transaction{tx},
	})
	assert.Equal(t, Reject, decision)
	assert.ErrorIs(t, err, txn.ErrInvalidSignature)
}

func TestDecryptedReplay_PreservesQueueOrder(t *testing.T) {
	p := newTestPipeline(t)
	sk := mustKey(t)
	payer, err := address.Implicit(&sk.PublicKey)
	require.NoError(t, err)
	bob := address.BridgePool   // any distinct internal address stands in for a recipient
	carol := address.Masp      // another distinct address, used only as a transfer target here

	require.NoError(t, p.ledger.Credit(p.Storage, payer, 100))
	require.NoError(t, p.ledger.Credit(p.Storage, address.FeeEscrow, 2*5)) // escrow for both wrappers' fees
	p.Epochs.Snapshot(pos.NewValidatorSet(1, map[address.Address]uint64{payer: 1}))

	innerA := EncodeTransfer(TransferPayload{To: bob, Amount: 10})
	innerB := EncodeTransfer(TransferPayload{To: carol, Amount: 5})

	entryA := queue.Entry{PartialHash: [32]byte{1}, Wrapper: txn.Wrapper{Fee: 5, GasLimit: 1000, PublicKey: &sk.PublicKey}, CommittedHash: committedHash(innerA)}
	entryB := queue.Entry{PartialHash: [32]byte{2}, Wrapper: txn.Wrapper{Fee: 5, GasLimit: 1000, PublicKey: &sk.PublicKey}, CommittedHash: committedHash(innerB)}
	p.Queue.Enqueue(entryA)
	p.Queue.Enqueue(entryB)

	decA := txn.New(nil, txn.EncodeDecrypted(txn.Decrypted{Inner: innerA}))
	decB := txn.New(nil, txn.EncodeDecrypted(txn.Decrypted{Inner: innerB}))

	// In-order: ProcessProposal must accept, FinalizeBlock must apply A
	// then B so bob is credited before carol is.
	decision, err := p.ProcessProposal(ProcessProposalRequest{Height: 1, Time: time.Now().UTC(), Txs: []*txn.Transaction{decA, decB}})
	require.NoError(t, err)
	assert.Equal(t, Accept, decision)

	resp, err := p.FinalizeBlock(context.Background(), FinalizeBlockRequest{
		Header: BlockHeader{Height: 1, Time: time.Now().UTC()},
		Txs:    []*txn.Transaction{decA, decB},
	})
	require.NoError(t, err)
	require.Len(t, resp.TxResults, 2)
	assert.True(t, resp.TxResults[0].Accepted)
	assert.True(t, resp.TxResults[1].Accepted)

	bobBal, err := p.ledger.Balance(p.Storage, bob)
	require.NoError(t, err)
	carolBal, err := p.ledger.Balance(p.Storage, carol)
	require.NoError(t, err)
	payerBal, err := p.ledger.Balance(p.Storage, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bobBal)
	assert.Equal(t, uint64(5), carolBal)
	assert.Equal(t, uint64(100-15), payerBal)

	_, err = p.Commit()
	require.NoError(t, err)
}

func TestProcessProposal_RejectsReorderedDecrypted(t *testing.T) {
	p := newTestPipeline(t)
	sk := mustKey(t)

	innerA := EncodeTransfer(TransferPayload{To: address.BridgePool, Amount: 10})
	innerB := EncodeTransfer(TransferPayload{To: address.SlashPool, Amount: 5})

	entryA := queue.Entry{PartialHash: [32]byte{1}, Wrapper: txn.Wrapper{Fee: 5, GasLimit: 1000, PublicKey: &sk.PublicKey}, CommittedHash: committedHash(innerA)}
	entryB := queue.Entry{PartialHash: [32]byte{2}, Wrapper: txn.Wrapper{Fee: 5, GasLimit: 1000, PublicKey: &sk.PublicKey}, CommittedHash: committedHash(innerB)}
	p.Queue.Enqueue(entryA)
	p.Queue.Enqueue(entryB)

	decA := txn.New(nil, txn.EncodeDecrypted(txn.Decrypted{Inner: innerA}))
	decB := txn.New(nil, txn.EncodeDecrypted(txn.Decrypted{Inner: innerB}))

	// Swapped order: slot 0 must match entryA's committed hash, but B is
	// presented first.
	decision, err := p.ProcessProposal(ProcessProposalRequest{Height: 1, Time: time.Now().UTC(), Txs: []*txn.Transaction{decB, decA}})
	assert.Equal(t, Reject, decision)
	assert.ErrorIs(t, err, ErrPayloadHashMismatch)
}

func TestGovernance_RejectedProposalRefundsSlashPoolAndEmitsEvent(t *testing.T) {
	p := newTestPipeline(t)

	author, err := address.Implicit(&mustKey(t).PublicKey)
	require.NoError(t, err)

	const (
		proposalID   = uint64(1)
		fundsLocked  = uint64(100_000_000)
		votingEndEpoch = uint64(9)
	)
	prop := governance.NewProposal(proposalID, author, fundsLocked, 0, votingEndEpoch, governance.PayloadWASM, []byte{0x00})
	require.NoError(t, p.govStore.Put(p.Storage, prop))
	require.NoError(t, p.ledger.Credit(p.Storage, address.Governance, fundsLocked)) // the escrow a GovSubmit tx takes from the author

	// Snapshot the validator set in effect for the closing epoch (9) with
	// nonzero stake so Compute has a non-empty denominator; with zero
	// votes cast, turnout is zero and quorum can never be met regardless.
	vs := pos.NewValidatorSet(votingEndEpoch, map[address.Address]uint64{author: 100})
	p.Epochs.Snapshot(vs)

	bus := events.NewBus()
	const housekeepingHeight = votingEndEpoch + 1 // epoch 10 at blocksPerEpoch=1
	require.NoError(t, p.runEpochHousekeeping(context.Background(), housekeepingHeight, bus))

	settled, ok, err := p.govStore.Get(p.Storage, proposalID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, governance.StatusRejected, settled.Status)

	slashBal, err := p.ledger.Balance(p.Storage, address.SlashPool)
	require.NoError(t, err)
	assert.Equal(t, fundsLocked, slashBal)

	emitted := bus.Events()
	require.Len(t, emitted, 1)
	ev := emitted[0]
	assert.Equal(t, "Proposal", ev.Type)
	assert.Equal(t, "1", ev.Attributes["proposal_id"])
	assert.Equal(t, "Rejected", ev.Attributes["tally_result"])
	assert.Equal(t, "true", ev.Attributes["has_proposal_code"])
	assert.Equal(t, "true", ev.Attributes["proposal_code_exit_status"])
}

func TestProcessProposal_RejectsDigestBelowQuorum(t *testing.T) {
	p := newTestPipeline(t)

	v1, err := address.Implicit(&mustKey(t).PublicKey)
	require.NoError(t, err)
	v2, err := address.Implicit(&mustKey(t).PublicKey)
	require.NoError(t, err)
	vs := pos.NewValidatorSet(0, map[address.Address]uint64{v1: 50, v2: 50})
	p.Epochs.Snapshot(vs)

	// Forge a digest crediting an event to v1 alone: 50/100 stake is
	// exactly half, never strictly > 2/3.
	digest := vote.EventDigest{
		Events: []vote.MultiSignedEvent{{
			Event:   vote.EthereumEvent{Kind: vote.EventTransfersToNamada, Nonce: 1, Payload: []byte("x")},
			Signers: []address.Address{v1},
		}},
	}
	payload, err := encodeDigest(digest)
	require.NoError(t, err)
	tx := txn.New(nil, txn.EncodeProtocol(txn.Protocol{Kind: txn.ProtocolEthEventsDigest, Payload: payload}))

	decision, err := p.ProcessProposal(ProcessProposalRequest{Height: 1, Time: time.Now().UTC(), Txs: []*txn.Transaction{tx}})
	assert.Equal(t, Reject, decision)
	assert.True(t, errors.Is(err, ErrDigestQuorumViolation) || errors.Is(err, vote.ErrInsufficientQuorum))
}

func TestBridgeRelayerRecommender_SelectsAllProfitableTransfers(t *testing.T) {
	const n = 17
	pool := make([]bridge.PendingTransfer, 0, n)
	for i := 0; i < n; i++ {
		var recipient [20]byte
		recipient[0] = byte(i + 1)
		pool = append(pool, bridge.PendingTransfer{
			Asset:     "NAM",
			Recipient: recipient,
			Amount:    1000,
			GasFee:    bridge.GasFee{Amount: 2000},
		})
	}

	params := bridge.RecommenderParams{
		SignatureFee:       100,
		ValsetFee:          50,
		TransferFeeGas:     1000,
		GweiPerNam:         1,
		SortedVotingPowers: []uint64{800_000},
		ValidatorCount:     1,
		MaxGas:             ^uint64(0),
		MaxCost:            0, // <=0 selects Greedy mode (spec §4.7 step 4)
	}

	selected := bridge.Recommend(pool, params)
	assert.Len(t, selected, n)

	// A zero-gas-fee transfer has positive marginal cost and must never
	// be picked up by the greedy walk.
	var freeRecipient [20]byte
	freeRecipient[19] = 0xff
	pool = append(pool, bridge.PendingTransfer{Asset: "NAM", Recipient: freeRecipient, Amount: 1000})
	selected = bridge.Recommend(pool, params)
	assert.Len(t, selected, n)
}
