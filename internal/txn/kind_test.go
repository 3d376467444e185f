package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Raw(t *testing.T) {
	tx := New(nil, EncodeRaw([]byte("payload")))
	kind, body, err := Classify(tx)
	require.NoError(t, err)
	assert.Equal(t, KindRaw, kind)
	assert.Equal(t, []byte("payload"), body)
}

func TestClassify_Wrapper_RoundTrip(t *testing.T) {
	sk := newKey(t)
	w := Wrapper{Fee: 42, GasLimit: 1000, PublicKey: &sk.PublicKey, Epoch: 7, Unshield: []byte("proof")}
	tx := New(nil, EncodeWrapper(w))

	kind, body, err := Classify(tx)
	require.NoError(t, err)
	assert.Equal(t, KindWrapper, kind)
	got := body.(Wrapper)
	assert.Equal(t, w.Fee, got.Fee)
	assert.Equal(t, w.GasLimit, got.GasLimit)
	assert.Equal(t, w.Epoch, got.Epoch)
	assert.Equal(t, w.Unshield, got.Unshield)
	require.NotNil(t, got.PublicKey)
	assert.Equal(t, sk.PublicKey.X, got.PublicKey.X)
}

func TestClassify_Decrypted_UndecryptableAndInner(t *testing.T) {
	tx := New(nil, EncodeDecrypted(Decrypted{Inner: []byte("inner")}))
	kind, body, err := Classify(tx)
	require.NoError(t, err)
	assert.Equal(t, KindDecrypted, kind)
	assert.Equal(t, Decrypted{Inner: []byte("inner")}, body)

	tx2 := New(nil, EncodeDecrypted(Decrypted{Undecryptable: true}))
	kind2, body2, err := Classify(tx2)
	require.NoError(t, err)
	assert.Equal(t, KindDecrypted, kind2)
	assert.True(t, body2.(Decrypted).Undecryptable)
}

func TestClassify_Protocol(t *testing.T) {
	tx := New(nil, EncodeProtocol(Protocol{Kind: ProtocolEthEventsDigest, Payload: []byte("digest")}))
	kind, body, err := Classify(tx)
	require.NoError(t, err)
	assert.Equal(t, KindProtocol, kind)
	assert.Equal(t, Protocol{Kind: ProtocolEthEventsDigest, Payload: []byte("digest")}, body)
}

func TestClassify_RejectsEmptyDataAndUnknownTag(t *testing.T) {
	_, _, err := Classify(New(nil, nil))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, _, err = Classify(New(nil, []byte{0xff}))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
