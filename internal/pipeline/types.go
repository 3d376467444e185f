// Package pipeline implements the block-processing pipeline of spec §4.4
// and the ABCI-shaped boundary of spec §6: PrepareProposal, ProcessProposal,
// FinalizeBlock, Commit, plus InitChain, ExtendVote, and
// VerifyVoteExtension. Grounded in the teacher's internal/consensus/proposer.go
// (proposal construction, timestamp monotonicity) and
// internal/consensus/validation.go (staged structural/continuity/signature
// checks), generalized from single-proposer-address block validation to the
// spec's three-part proposal composition and per-tx-kind invariant checks.
package pipeline

import (
	"errors"
	"time"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/events"
	"github.com/empower1/ledger/internal/txn"
	"github.com/empower1/ledger/internal/vote"
)

// Decision is the verdict ProcessProposal and VerifyVoteExtension return
// (spec §6: "Accept | Reject").
type Decision int

const (
	Accept Decision = iota
	Reject
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

var (
	ErrNilBlock               = errors.New("pipeline: nil proposal")
	ErrTxOutOfOrder           = errors.New("pipeline: transaction out of order")
	ErrQueueSlotMismatch      = errors.New("pipeline: decrypted tx does not match expected queue slot")
	ErrPayloadHashMismatch    = errors.New("pipeline: decrypted payload hash does not match committed wrapper hash")
	ErrFeeBelowFloor          = errors.New("pipeline: wrapper fee below gas_price_floor * gas_limit")
	ErrEpochMismatch          = errors.New("pipeline: wrapper epoch stamp does not match current epoch")
	ErrInsufficientBalance    = errors.New("pipeline: payer balance insufficient for wrapper fee")
	ErrWrapperBalanceUnderflow = errors.New("pipeline: wrapper balance would underflow after unshield")
	ErrDigestQuorumViolation  = errors.New("pipeline: vote-extension digest includes an event below 2/3 stake quorum")
	ErrUnknownValidatorSet    = errors.New("pipeline: no validator set snapshot for epoch")
	ErrMissingPayerKey        = errors.New("pipeline: wrapper carries no fee-payer public key")
)

// MempoolTx is one candidate transaction sitting in the mempool snapshot
// PrepareProposal composes from (spec §4.4).
type MempoolTx struct {
	Tx    *txn.Transaction
	Bytes []byte
}

// TxAction is the proposer's disposition for one mempool entry (spec §4.4:
// "an ordered list of TxRecords (Add/Keep/Remove over the mempool
// snapshot)").
type TxAction int

const (
	// ActionAdd marks a transaction the pipeline itself originated (a
	// protocol digest or a decrypted queue replay), not present in the
	// mempool snapshot.
	ActionAdd TxAction = iota
	// ActionKeep marks an accepted mempool wrapper, included in the
	// proposal and left in the mempool until it clears on-chain.
	ActionKeep
	// ActionRemove marks a mempool entry dropped from consideration:
	// malformed, unsigned, a non-wrapper tx, or a wrapper beyond the
	// proposal's mempool cap (spec §4.4 step 2).
	ActionRemove
)

// TxRecord pairs a disposition with the transaction it applies to.
type TxRecord struct {
	Action TxAction
	Tx     *txn.Transaction
}

// PrepareProposalRequest is the proposer-only input to PrepareProposal
// (spec §6).
type PrepareProposalRequest struct {
	Height uint64
	// MempoolTxs is the current mempool snapshot.
	MempoolTxs []MempoolTx
	// LastCommitVoteExtensions are the VoteExtensions gathered by this
	// node's ExtendVote at height-1, to be aggregated into a protocol tx
	// (spec §4.5). Empty for height<=1.
	LastCommitVoteExtensions []vote.VoteExtension
	MaxTxBytes               int
}

// PrepareProposalResponse carries the ordered TxRecords that become the
// proposal (spec §4.4).
type PrepareProposalResponse struct {
	TxRecords []TxRecord
}

// ProcessProposalRequest is the input every validator checks before
// voting (spec §6).
type ProcessProposalRequest struct {
	Height uint64
	Time   time.Time
	Txs    []*txn.Transaction
}

// ExtendVoteRequest requests this validator's vote extension for height
// (spec §6).
type ExtendVoteRequest struct {
	Height uint64
}

// VerifyVoteExtensionRequest carries a peer's vote extension to check
// against the §4.5 filter rules before counting it toward quorum.
type VerifyVoteExtensionRequest struct {
	Extension vote.VoteExtension
}

// BlockHeader carries the ambient block metadata FinalizeBlock needs.
type BlockHeader struct {
	Height    uint64
	Time      time.Time
	Proposer  address.Address
}

// FinalizeBlockRequest applies a decided proposal (spec §6).
type FinalizeBlockRequest struct {
	Header BlockHeader
	Txs    []*txn.Transaction
}

// TxResult is the per-tx outcome of FinalizeBlock.
type TxResult struct {
	Accepted bool
	GasUsed  uint64
	Error    error
}

// ValidatorUpdate communicates a bonded-stake change to the consensus
// engine after epoch housekeeping (spec §4.4 step "Validator-set rotation
// snapshot").
type ValidatorUpdate struct {
	Validator address.Address
	Power     uint64
}

// FinalizeBlockResponse is the outcome of applying a whole block (spec
// §6).
type FinalizeBlockResponse struct {
	TxResults        []TxResult
	Events           []events.Event
	ValidatorUpdates []ValidatorUpdate
}

// InitChainRequest seeds genesis state (spec §6).
type InitChainRequest struct {
	Validators map[address.Address]uint64
}

// InitChainResponse reports the genesis validator set and initial app
// hash.
type InitChainResponse struct {
	Validators   map[address.Address]uint64
	AppStateRoot [32]byte
}
