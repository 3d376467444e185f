package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/bridge"
	"github.com/empower1/ledger/internal/events"
	"github.com/empower1/ledger/internal/gas"
	"github.com/empower1/ledger/internal/governance"
	"github.com/empower1/ledger/internal/storage"
	"github.com/empower1/ledger/internal/vmrun"
)

// AppAction tags the native operation a decrypted inner transaction
// requests. Internal addresses (PoS, Governance, BridgePool) are backed by
// native Go validity predicates rather than WASM, mirroring the teacher's
// predefined-internal-address design; everything else runs as a WASM
// contract call through vmrun.
type AppAction byte

const (
	ActionTransfer AppAction = iota
	ActionBridgeInsert
	ActionGovSubmit
	ActionGovVote
	ActionWASMCall
)

var (
	ErrUnknownAction  = errors.New("pipeline: unknown native dispatch action")
	ErrMalformedAppTx = errors.New("pipeline: malformed application payload")
)

// TransferPayload moves tokens between two accounts.
type TransferPayload struct {
	To     address.Address
	Amount uint64
}

// BridgeInsertPayload queues an outbound transfer in the bridge pool
// (spec §4.7: "insert(transfer) via a regular transaction executed
// against the pool VP").
type BridgeInsertPayload struct {
	Asset        string
	Recipient    [20]byte
	Amount       uint64
	GasFeeAmount uint64
}

// GovSubmitPayload opens a new governance proposal (spec §3: "Proposal").
type GovSubmitPayload struct {
	ID               uint64
	FundsLocked      uint64
	VotingStartEpoch uint64
	VotingEndEpoch   uint64
	PayloadKind      governance.PayloadKind
	Code             []byte
}

// GovVotePayload casts a ballot on an open proposal.
type GovVotePayload struct {
	ProposalID uint64
	Yay        bool
}

// WASMCallPayload invokes a deployed contract by its established address.
type WASMCallPayload struct {
	Contract   address.Address
	Code       []byte
	IsCodeHash bool
	Input      []byte
}

func encodeAction(action AppAction, payload interface{}) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(action))
	if payload != nil {
		_ = gob.NewEncoder(&buf).Encode(payload)
	}
	return buf.Bytes()
}

// EncodeTransfer builds the Raw-kind inner-tx payload for a plain token
// transfer.
func EncodeTransfer(p TransferPayload) []byte { return encodeAction(ActionTransfer, p) }

// EncodeBridgeInsert builds the payload for a bridge-pool insertion.
func EncodeBridgeInsert(p BridgeInsertPayload) []byte { return encodeAction(ActionBridgeInsert, p) }

// EncodeGovSubmit builds the payload for a new governance proposal.
func EncodeGovSubmit(p GovSubmitPayload) []byte { return encodeAction(ActionGovSubmit, p) }

// EncodeGovVote builds the payload for a governance ballot.
func EncodeGovVote(p GovVotePayload) []byte { return encodeAction(ActionGovVote, p) }

// EncodeWASMCall builds the payload for a generic contract invocation.
func EncodeWASMCall(p WASMCallPayload) []byte { return encodeAction(ActionWASMCall, p) }

// dispatch runs one decrypted inner transaction's application payload
// against acc (a tx-level write-log layer), debiting/crediting through
// ledger and emitting events onto bus. It is the native counterpart to
// vmrun.VMService.Execute for the internal addresses (spec §3.9's WASM
// contract only covers Established-address code; PoS/Governance/BridgePool
// have native validity predicates per the teacher's predefined-internal-
// address design).
func (p *Pipeline) dispatch(ctx context.Context, acc storage.Accessor, caller address.Address, meter *gas.Meter, bus *events.Bus, txIndex int, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedAppTx)
	}
	action := AppAction(payload[0])
	body := payload[1:]

	switch action {
	case ActionTransfer:
		var t TransferPayload
		if err := gobDecode(body, &t); err != nil {
			return fmt.Errorf("%w: transfer: %v", ErrMalformedAppTx, err)
		}
		if err := meter.Consume(baseTransferGas); err != nil {
			return err
		}
		if err := p.ledger.Transfer(acc, caller, t.To, t.Amount); err != nil {
			return err
		}
		bus.Emit(events.New(events.TypeTransfer, events.LevelInfo, map[string]string{
			"from":   caller.String(),
			"to":     t.To.String(),
			"amount": fmt.Sprint(t.Amount),
		}))
		return nil

	case ActionBridgeInsert:
		var b BridgeInsertPayload
		if err := gobDecode(body, &b); err != nil {
			return fmt.Errorf("%w: bridge insert: %v", ErrMalformedAppTx, err)
		}
		if err := meter.Consume(baseBridgeInsertGas); err != nil {
			return err
		}
		transfer := bridge.PendingTransfer{
			Asset:     b.Asset,
			Recipient: b.Recipient,
			Sender:    caller,
			Amount:    b.Amount,
			GasFee:    bridge.GasFee{Amount: b.GasFeeAmount, Payer: caller},
		}
		if err := p.ledger.Debit(acc, caller, b.GasFeeAmount); err != nil {
			return err
		}
		if err := p.ledger.Credit(acc, address.BridgePool, b.GasFeeAmount); err != nil {
			return err
		}
		if err := p.Bridge.Insert(transfer); err != nil {
			return err
		}
		bus.Emit(events.New(events.TypeEthBridge, events.LevelInfo, map[string]string{
			"asset":  b.Asset,
			"amount": fmt.Sprint(b.Amount),
			"sender": caller.String(),
		}))
		return nil

	case ActionGovSubmit:
		var g GovSubmitPayload
		if err := gobDecode(body, &g); err != nil {
			return fmt.Errorf("%w: gov submit: %v", ErrMalformedAppTx, err)
		}
		if err := meter.Consume(baseGovSubmitGas); err != nil {
			return err
		}
		if err := p.ledger.Debit(acc, caller, g.FundsLocked); err != nil {
			return err
		}
		if err := p.ledger.Credit(acc, address.Governance, g.FundsLocked); err != nil {
			return err
		}
		prop := governance.NewProposal(g.ID, caller, g.FundsLocked, g.VotingStartEpoch, g.VotingEndEpoch, g.PayloadKind, g.Code)
		return p.govStore.Put(acc, prop)

	case ActionGovVote:
		var v GovVotePayload
		if err := gobDecode(body, &v); err != nil {
			return fmt.Errorf("%w: gov vote: %v", ErrMalformedAppTx, err)
		}
		if err := meter.Consume(baseGovVoteGas); err != nil {
			return err
		}
		prop, ok, err := p.govStore.Get(acc, v.ProposalID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: proposal %d not found", ErrMalformedAppTx, v.ProposalID)
		}
		if err := prop.CastVote(caller, governance.Vote(v.Yay)); err != nil {
			return err
		}
		return p.govStore.Put(acc, prop)

	case ActionWASMCall:
		var w WASMCallPayload
		if err := gobDecode(body, &w); err != nil {
			return fmt.Errorf("%w: wasm call: %v", ErrMalformedAppTx, err)
		}
		res, err := p.VM.Execute(ctx, w.Code, acc, meter, bus, w.Contract, caller, vmrun.BlockContext{
			Height:    p.height,
			Timestamp: p.lastBlockTime.Unix(),
		}, vmBalances{ledger: p.ledger, acc: acc}, w.Input)
		if err != nil {
			return err
		}
		if !res.Accepted {
			return fmt.Errorf("%w: contract rejected its own call", ErrMalformedAppTx)
		}
		return nil

	default:
		return fmt.Errorf("%w: 0x%x", ErrUnknownAction, byte(action))
	}
}

func gobDecode(b []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

const (
	baseTransferGas      = 500
	baseBridgeInsertGas  = 1500
	baseGovSubmitGas     = 2000
	baseGovVoteGas       = 300
)
