package pipeline

import (
	"crypto/ecdsa"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/bridge"
	"github.com/empower1/ledger/internal/governance"
	"github.com/empower1/ledger/internal/metrics"
	"github.com/empower1/ledger/internal/pos"
	"github.com/empower1/ledger/internal/queue"
	"github.com/empower1/ledger/internal/storage"
	"github.com/empower1/ledger/internal/vmrun"
	"github.com/empower1/ledger/internal/vote"
)

// UnshieldVerifier verifies a bound shielded-unshielding proof and reports
// the amount of tokens it releases into the payer's transparent balance
// (spec §1: "verify a bound shielded transaction against a set of asset
// conversions at a given epoch" — the MASP proving/verification primitive
// itself is out of scope; this is the seam the real verifier plugs into).
type UnshieldVerifier interface {
	Verify(payer address.Address, proof []byte, epoch uint64) (amount uint64, err error)
}

// NullUnshieldVerifier is the default UnshieldVerifier: with no MASP
// circuit wired in, a bound unshield proof is rejected outright rather than
// silently accepted, since accepting an unverified proof would mint funds
// out of thin air.
type NullUnshieldVerifier struct{}

func (NullUnshieldVerifier) Verify(address.Address, []byte, uint64) (uint64, error) {
	return 0, errShieldedVerificationUnavailable
}

var errShieldedVerificationUnavailable = errUnshieldUnavailable{}

type errUnshieldUnavailable struct{}

func (errUnshieldUnavailable) Error() string {
	return "pipeline: no MASP verifier configured, bound unshield proof cannot be checked"
}

// Config bundles the construction-time parameters of a Pipeline (spec §9
// ambient-stack guidance: "a plain Config struct per component").
type Config struct {
	GasPriceFloor  uint64
	BaseDecryptGas uint64
	Governance     governance.QuorumBps
	MaxMempoolFrac int // reciprocal of the mempool-inclusion cap fraction; spec §4.4 uses 1/2
	SelfAddress    address.Address
	ProtocolKey    *ecdsa.PrivateKey
}

// Pipeline coordinates storage, the queue, PoS epochs, the bridge pool,
// governance, and WASM execution across the four ABCI-shaped steps of
// spec §4.4. Exactly one Pipeline drives consensus application per node;
// it is never shared across goroutines (spec §5: "strictly single-threaded
// per block").
type Pipeline struct {
	cfg Config

	Storage *storage.WriteLog
	Queue   *queue.Queue
	Epochs  *pos.EpochManager
	Bridge  *bridge.Pool
	VM      *vmrun.VMService
	Metrics *metrics.Registry
	Logger  *zap.SugaredLogger

	Decryptor  Decryptor
	Unshield   UnshieldVerifier
	Conversion ConversionTable

	ledger   Ledger
	govStore govProposalStore

	protocolKeys map[string]*ecdsa.PublicKey

	height        uint64
	lastBlockTime time.Time

	// pendingEnqueue and resolvedSlots accumulate this block's queue
	// mutations (newly-accepted wrappers to enqueue, number of slots
	// resolved) so Commit can apply them atomically per spec §4.4's
	// Commit step.
	pendingEnqueue []queue.Entry
	resolvedSlots  int

	// pendingExtensionEvents buffers confirmed Ethereum events ingested
	// from the oracle task since this validator's last signed extension
	// (spec §4.5).
	pendingExtensionEvents []vote.EthereumEvent
}

// New constructs a Pipeline over store, with blocksPerEpoch controlling the
// PoS epoch boundary.
func New(store storage.Store, blocksPerEpoch uint64, cfg Config, logger *zap.SugaredLogger) *Pipeline {
	if cfg.MaxMempoolFrac == 0 {
		cfg.MaxMempoolFrac = 2
	}
	if cfg.Governance == 0 {
		cfg.Governance = governance.DefaultGovernanceQuorumBps
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		cfg:          cfg,
		Storage:      storage.NewWriteLog(store),
		Queue:        queue.New(),
		Epochs:       pos.NewEpochManager(blocksPerEpoch),
		Bridge:       bridge.NewPool(),
		VM:           vmrun.NewVMService(),
		Logger:       logger.Named("pipeline"),
		Decryptor:    PlaceholderDecryptor{},
		Unshield:     NullUnshieldVerifier{},
		Conversion:   NoopConversionTable{},
		protocolKeys: make(map[string]*ecdsa.PublicKey),
	}
}

// RegisterProtocolKey records a validator's protocol (vote-extension
// signing) public key, consulted by Aggregate/VerifyDigest (spec §4.5).
func (p *Pipeline) RegisterProtocolKey(addr address.Address, pub *ecdsa.PublicKey) {
	p.protocolKeys[string(addr.Bytes())] = pub
}

// ProtocolKey implements vote.ProtocolKeys.
func (p *Pipeline) ProtocolKey(addr address.Address) (*ecdsa.PublicKey, bool) {
	pub, ok := p.protocolKeys[string(addr.Bytes())]
	return pub, ok
}

// IngestOracleEvent buffers a confirmed L1 event observed by this node's
// oracle task for inclusion in its next signed VoteExtension (spec §4.5:
// the oracle "pushes confirmed events to the validator via a local
// channel"; this is the consumer side of that channel).
func (p *Pipeline) IngestOracleEvent(e vote.EthereumEvent) {
	p.pendingExtensionEvents = append(p.pendingExtensionEvents, e)
}

// Height reports the last committed height.
func (p *Pipeline) Height() uint64 { return p.height }

// InitChain seeds the genesis validator set and returns the empty app
// state root (spec §6).
func (p *Pipeline) InitChain(req InitChainRequest) (InitChainResponse, error) {
	vs := pos.NewValidatorSet(0, req.Validators)
	p.Epochs.Snapshot(vs)
	root, err := p.Storage.FoldBlock()
	if err != nil {
		return InitChainResponse{}, err
	}
	return InitChainResponse{Validators: req.Validators, AppStateRoot: root}, nil
}

// validatorSetAt returns the validator set snapshot for epoch, if one has
// been recorded.
func (p *Pipeline) validatorSetAt(epoch uint64) (*pos.ValidatorSet, bool) {
	return p.Epochs.At(epoch)
}

func queueStorageKey(partialHash [32]byte) string {
	return "queue/pending/" + hex.EncodeToString(partialHash[:])
}
