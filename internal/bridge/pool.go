package bridge

import (
	"sort"

	"github.com/empower1/ledger/internal/address"
)

// SignedRoot is a Merkle root over the pool's contents at the moment it
// was signed by a validator quorum, archived by height (spec §3:
// "signed-root archive keyed by height and a nonce").
type SignedRoot struct {
	Height     uint64
	Root       [32]byte
	Nonce      uint64
	Signatures map[string][]byte // validator address textual form -> signature
}

// Pool is the Merkle-accumulator of outbound transfers (spec §4.7).
type Pool struct {
	transfers map[[32]byte]PendingTransfer
	archive   []SignedRoot // ordered by Height ascending
	nonce     uint64
}

// NewPool constructs an empty bridge pool.
func NewPool() *Pool {
	return &Pool{transfers: make(map[[32]byte]PendingTransfer)}
}

// Insert adds transfer to the pool (spec §4.7: "insert(transfer) via a
// regular transaction executed against the pool VP; VP enforces ≥1
// gas-fee token locked in escrow").
func (p *Pool) Insert(t PendingTransfer) error {
	if t.GasFee.Amount < 1 {
		return ErrInsufficientGasFee
	}
	p.transfers[t.ContentHash()] = t
	return nil
}

// Remove drops a transfer once it has been relayed (contract nonce
// advanced past the batch, or explicit expiry — spec §3 lifecycle).
func (p *Pool) Remove(hash [32]byte) {
	delete(p.transfers, hash)
}

// Pending returns the current pending transfers, ordered by content hash
// for deterministic iteration.
func (p *Pool) Pending() []PendingTransfer {
	out := make([]PendingTransfer, 0, len(p.transfers))
	for _, t := range p.transfers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		hi, hj := out[i].ContentHash(), out[j].ContentHash()
		return string(hi[:]) < string(hj[:])
	})
	return out
}

// Root computes the Merkle root over the currently pending transfers.
func (p *Pool) Root() [32]byte {
	leaves := make([][32]byte, 0, len(p.transfers))
	for h := range p.transfers {
		leaves = append(leaves, h)
	}
	return buildMerkleTree(leaves).root()
}

// SignRoot archives the pool's current root for height, incrementing the
// pool's nonce counter (spec §4.7: "A nonce counter increments on every
// root signature round").
func (p *Pool) SignRoot(height uint64, signatures map[string][]byte) SignedRoot {
	p.nonce++
	sr := SignedRoot{
		Height:     height,
		Root:       p.Root(),
		Nonce:      p.nonce,
		Signatures: signatures,
	}
	p.archive = append(p.archive, sr)
	return sr
}

// SignedRootAt returns the most recent root+signatures archive at or
// before height (spec §4.7: "signed_root(height)").
func (p *Pool) SignedRootAt(height uint64) (SignedRoot, error) {
	for i := len(p.archive) - 1; i >= 0; i-- {
		if p.archive[i].Height <= height {
			return p.archive[i], nil
		}
	}
	return SignedRoot{}, ErrNoSignedRoot
}

// RelayProof is the on-wire, ABI-encodable proof a relayer submits to the
// L1 contract (spec §6: "Solidity-ABI-encoded RelayProof{transfers[],
// proof, root, batch_nonce, signatures[]}"). ABI encoding itself is an L1
// contract-interface concern outside this core's scope; this type carries
// the fields such an encoder would consume.
type RelayProof struct {
	Transfers  []PendingTransfer
	Proofs     map[[32]byte][]ProofStep
	Root       [32]byte
	BatchNonce uint64
	Signatures map[string][]byte
	Relayer    address.Address
}

// GenerateProof produces a Merkle proof of membership for the given
// hashes under the most recent signed root, signing relayer into the
// result so fees are attributed correctly (spec §4.7).
func (p *Pool) GenerateProof(hashes [][32]byte, relayer address.Address, atHeight uint64) (RelayProof, error) {
	sr, err := p.SignedRootAt(atHeight)
	if err != nil {
		return RelayProof{}, err
	}
	leaves := make([][32]byte, 0, len(p.transfers))
	for h := range p.transfers {
		leaves = append(leaves, h)
	}
	tree := buildMerkleTree(leaves)

	proofs := make(map[[32]byte][]ProofStep, len(hashes))
	transfers := make([]PendingTransfer, 0, len(hashes))
	for _, h := range hashes {
		t, ok := p.transfers[h]
		if !ok {
			return RelayProof{}, ErrUnknownTransfer
		}
		steps, ok := tree.path(h)
		if !ok {
			return RelayProof{}, ErrUnknownTransfer
		}
		proofs[h] = steps
		transfers = append(transfers, t)
	}

	return RelayProof{
		Transfers:  transfers,
		Proofs:     proofs,
		Root:       sr.Root,
		BatchNonce: sr.Nonce,
		Signatures: sr.Signatures,
		Relayer:    relayer,
	}, nil
}
