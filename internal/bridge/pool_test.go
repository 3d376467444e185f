package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/ledger/internal/address"
)

func newTransfer(recipientByte byte, gasFee uint64) PendingTransfer {
	var recipient [20]byte
	recipient[0] = recipientByte
	return PendingTransfer{
		Asset:     "NAM",
		Recipient: recipient,
		Amount:    100,
		GasFee:    GasFee{Amount: gasFee},
	}
}

func TestInsert_RejectsInsufficientGasFee(t *testing.T) {
	p := NewPool()
	err := p.Insert(newTransfer(1, 0))
	assert.ErrorIs(t, err, ErrInsufficientGasFee)
}

func TestInsert_ThenPending_ListsTransfer(t *testing.T) {
	p := NewPool()
	tr := newTransfer(1, 10)
	require.NoError(t, p.Insert(tr))
	pending := p.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, tr.ContentHash(), pending[0].ContentHash())
}

func TestRemove_DropsTransferFromPool(t *testing.T) {
	p := NewPool()
	tr := newTransfer(1, 10)
	require.NoError(t, p.Insert(tr))
	p.Remove(tr.ContentHash())
	assert.Empty(t, p.Pending())
}

func TestSignRoot_IncrementsNonceAndArchives(t *testing.T) {
	p := NewPool()
	require.NoError(t, p.Insert(newTransfer(1, 10)))

	sr1 := p.SignRoot(5, map[string][]byte{"v1": []byte("sig")})
	assert.Equal(t, uint64(1), sr1.Nonce)

	sr2 := p.SignRoot(10, map[string][]byte{"v1": []byte("sig")})
	assert.Equal(t, uint64(2), sr2.Nonce)

	got, err := p.SignedRootAt(7)
	require.NoError(t, err)
	assert.Equal(t, sr1.Nonce, got.Nonce)

	got, err = p.SignedRootAt(100)
	require.NoError(t, err)
	assert.Equal(t, sr2.Nonce, got.Nonce)

	_, err = p.SignedRootAt(0)
	assert.ErrorIs(t, err, ErrNoSignedRoot)
}

func TestGenerateProof_VerifiesAgainstSignedRoot(t *testing.T) {
	p := NewPool()
	tr1 := newTransfer(1, 10)
	tr2 := newTransfer(2, 20)
	require.NoError(t, p.Insert(tr1))
	require.NoError(t, p.Insert(tr2))

	sr := p.SignRoot(1, map[string][]byte{"v1": []byte("sig")})

	relayer := address.BridgePool
	proof, err := p.GenerateProof([][32]byte{tr1.ContentHash()}, relayer, 1)
	require.NoError(t, err)
	assert.Equal(t, sr.Root, proof.Root)
	assert.Equal(t, sr.Nonce, proof.BatchNonce)
	require.Len(t, proof.Transfers, 1)

	steps := proof.Proofs[tr1.ContentHash()]
	assert.True(t, VerifyPath(tr1.ContentHash(), steps, proof.Root))
}

func TestGenerateProof_UnknownTransfer(t *testing.T) {
	p := NewPool()
	require.NoError(t, p.Insert(newTransfer(1, 10)))
	p.SignRoot(1, nil)

	var bogus [32]byte
	bogus[0] = 0xff
	_, err := p.GenerateProof([][32]byte{bogus}, address.BridgePool, 1)
	assert.ErrorIs(t, err, ErrUnknownTransfer)
}

func TestContentHash_DistinguishesTransfers(t *testing.T) {
	tr1 := newTransfer(1, 10)
	tr2 := newTransfer(2, 10)
	assert.NotEqual(t, tr1.ContentHash(), tr2.ContentHash())
}
