package vote

import (
	"errors"
	"math/big"
)

func encodeRS(r, s *big.Int) []byte {
	rb := r.Bytes()
	sb := s.Bytes()
	out := make([]byte, 1+len(rb)+len(sb))
	out[0] = byte(len(rb))
	copy(out[1:], rb)
	copy(out[1+len(rb):], sb)
	return out
}

func decodeRS(sig []byte) (*big.Int, *big.Int, error) {
	if len(sig) < 1 {
		return nil, nil, errors.New("signature too short")
	}
	rLen := int(sig[0])
	if len(sig) < 1+rLen {
		return nil, nil, errors.New("signature truncated")
	}
	r := new(big.Int).SetBytes(sig[1 : 1+rLen])
	s := new(big.Int).SetBytes(sig[1+rLen:])
	return r, s, nil
}
