package address

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImplicit_DeterministicAndDistinct(t *testing.T) {
	sk1, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	sk2, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	a1, err := Implicit(&sk1.PublicKey)
	require.NoError(t, err)
	a1Again, err := Implicit(&sk1.PublicKey)
	require.NoError(t, err)
	a2, err := Implicit(&sk2.PublicKey)
	require.NoError(t, err)

	assert.True(t, a1.Equal(a1Again))
	assert.False(t, a1.Equal(a2))
	assert.Equal(t, KindImplicit, a1.Kind())
}

func TestImplicit_RejectsNonP256Key(t *testing.T) {
	sk, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
	require.NoError(t, err)
	_, err = Implicit(&sk.PublicKey)
	assert.ErrorIs(t, err, ErrInvalidPubKey)
}

func TestBytesRoundTrip(t *testing.T) {
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	a, err := Implicit(&sk.PublicKey)
	require.NoError(t, err)

	got, err := FromBytes(a.Bytes())
	require.NoError(t, err)
	assert.True(t, a.Equal(got))
}

func TestFromBytes_RejectsBadLengthAndKind(t *testing.T) {
	_, err := FromBytes([]byte{byte(KindImplicit), 1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = FromBytes([]byte{0xff, 1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = FromBytes(nil)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestInternalAddresses_AreDistinctAndRoundTrip(t *testing.T) {
	ids := []Address{PoS, Governance, BridgePool, SlashPool, Masp, FeeEscrow}
	for i, a := range ids {
		for j, b := range ids {
			if i == j {
				continue
			}
			assert.False(t, a.Equal(b), "internal addresses %d and %d collide", i, j)
		}
		got, err := FromBytes(a.Bytes())
		require.NoError(t, err)
		assert.True(t, a.Equal(got))
		id, ok := a.InternalID()
		assert.True(t, ok)
		assert.NotEmpty(t, id.String())
	}
}

func TestStringParse_RoundTrip(t *testing.T) {
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	a, err := Implicit(&sk.PublicKey)
	require.NoError(t, err)

	s := a.String()
	got, err := Parse(s)
	require.NoError(t, err)
	assert.True(t, a.Equal(got))
}

func TestParse_RejectsMalformed(t *testing.T) {
	_, err := Parse("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidTextual)
}

func TestEstablished_DerivesFromCodeHash(t *testing.T) {
	var h1, h2 [32]byte
	h1[0] = 1
	h2[0] = 2
	a1, err := Established(h1)
	require.NoError(t, err)
	a2, err := Established(h2)
	require.NoError(t, err)
	assert.False(t, a1.Equal(a2))
	assert.Equal(t, KindEstablished, a1.Kind())
}
