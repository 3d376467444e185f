package pipeline

import (
	"context"
	"crypto/sha256"
)

// Decryptor stands in for the DKG-style threshold decryption scheme spec
// §1/§2 describes only as a placeholder: "a two-phase (encrypt-now,
// decrypt-next-block) transaction queue with a DKG-style threshold
// decryption placeholder". The actual threshold cryptography is out of
// this core's scope (spec §1 cryptography-primitives Non-goal); what the
// pipeline owns is the queue lifecycle around it, so Decrypt is the seam a
// real threshold-decryption service would be wired in behind.
type Decryptor interface {
	// Decrypt attempts to recover the cleartext inner transaction bytes
	// committed under payload at partialHash. ok is false if decryption
	// fails (the DKG round produced no usable share set, a timeout, etc.),
	// in which case the queue slot becomes Undecryptable.
	Decrypt(ctx context.Context, partialHash [32]byte, payload []byte) (inner []byte, ok bool)
}

// PlaceholderDecryptor is the default Decryptor: since no real threshold
// scheme is in scope, the "ciphertext" committed at wrapper time already is
// the cleartext, and decryption always succeeds. This keeps the queue
// lifecycle and the Undecryptable code path exercised and testable without
// inventing unverifiable cryptography.
type PlaceholderDecryptor struct{}

func (PlaceholderDecryptor) Decrypt(_ context.Context, _ [32]byte, payload []byte) ([]byte, bool) {
	return payload, true
}

// committedHash returns the hash that must be reproduced on successful
// decryption (spec §4.4: "the payload hash matches the wrapper's committed
// code hash"). Computed over the payload as committed at wrapper
// acceptance time.
func committedHash(payload []byte) [32]byte {
	return sha256.Sum256(payload)
}
