package txn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/binary"
	"fmt"
)

// Kind classifies a Transaction by the leading tag byte of its Data field.
// The tag is this implementation's own framing (spec §3 only requires that
// TxKind be "derived from Transaction.data"; the exact tag scheme is an
// internal matter, unlike the envelope encoding in spec §6).
type Kind byte

const (
	KindRaw Kind = iota
	KindWrapper
	KindDecrypted
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindWrapper:
		return "wrapper"
	case KindDecrypted:
		return "decrypted"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Wrapper carries the fee and gas metadata of an outer transaction whose
// payload is encrypted until the next block (spec §3).
type Wrapper struct {
	Fee      uint64
	GasLimit uint64
	PublicKey *ecdsa.PublicKey
	Epoch    uint64
	// Unshield, when non-nil, points at a bound shielded-transfer proof
	// that must be executed before the fee is debited (spec §4.4).
	Unshield []byte
}

// ProtocolKind discriminates the protocol-transaction variants.
type ProtocolKind byte

const (
	ProtocolEthEventsDigest ProtocolKind = iota
	ProtocolValsetUpdDigest
)

// Decrypted is the cleartext payload recovered from a previously-queued
// wrapper, or the Undecryptable placeholder that stands in for it when
// threshold decryption fails (spec §4.3).
type Decrypted struct {
	Undecryptable bool
	Inner         []byte
}

// Protocol is an internal-origin transaction signed with a validator's
// protocol key (e.g. a vote-extension digest).
type Protocol struct {
	Kind    ProtocolKind
	Payload []byte
}

// EncodeRaw builds Data for a KindRaw transaction: the tag byte followed by
// the application payload verbatim.
func EncodeRaw(payload []byte) []byte {
	return append([]byte{byte(KindRaw)}, payload...)
}

// EncodeWrapper builds Data for a KindWrapper transaction.
func EncodeWrapper(w Wrapper) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindWrapper))
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], w.Fee)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], w.GasLimit)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], w.Epoch)
	buf.Write(u64[:])
	var pubBytes []byte
	if w.PublicKey != nil {
		pubBytes = elliptic.Marshal(elliptic.P256(), w.PublicKey.X, w.PublicKey.Y)
	}
	writeLenPrefixed(&buf, pubBytes)
	writeLenPrefixed(&buf, w.Unshield)
	return buf.Bytes()
}

// EncodeDecrypted builds Data for a KindDecrypted transaction.
func EncodeDecrypted(d Decrypted) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindDecrypted))
	if d.Undecryptable {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
		buf.Write(d.Inner)
	}
	return buf.Bytes()
}

// EncodeProtocol builds Data for a KindProtocol transaction.
func EncodeProtocol(p Protocol) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindProtocol))
	buf.WriteByte(byte(p.Kind))
	buf.Write(p.Payload)
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func readLenPrefixed(b []byte) (field, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated length prefix", ErrInvalidFormat)
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(n) > uint64(len(b)) {
		return nil, nil, fmt.Errorf("%w: field length %d exceeds remaining %d", ErrInvalidFormat, n, len(b))
	}
	return b[:n], b[n:], nil
}

// Classify inspects tx.Data's tag byte and decodes the corresponding
// payload. For KindRaw, the returned value is the raw application payload
// bytes.
func Classify(tx *Transaction) (Kind, interface{}, error) {
	if len(tx.Data) == 0 {
		return 0, nil, fmt.Errorf("%w: empty tx data", ErrInvalidFormat)
	}
	kind := Kind(tx.Data[0])
	body := tx.Data[1:]
	switch kind {
	case KindRaw:
		return KindRaw, body, nil
	case KindWrapper:
		w, err := decodeWrapper(body)
		return KindWrapper, w, err
	case KindDecrypted:
		d, err := decodeDecrypted(body)
		return KindDecrypted, d, err
	case KindProtocol:
		p, err := decodeProtocol(body)
		return KindProtocol, p, err
	default:
		return 0, nil, fmt.Errorf("%w: unknown tx kind tag 0x%x", ErrInvalidFormat, byte(kind))
	}
}

func decodeWrapper(b []byte) (Wrapper, error) {
	if len(b) < 24 {
		return Wrapper{}, fmt.Errorf("%w: wrapper body too short", ErrInvalidFormat)
	}
	fee := binary.BigEndian.Uint64(b[0:8])
	gasLimit := binary.BigEndian.Uint64(b[8:16])
	epoch := binary.BigEndian.Uint64(b[16:24])
	rest := b[24:]
	pubBytes, rest, err := readLenPrefixed(rest)
	if err != nil {
		return Wrapper{}, err
	}
	unshield, rest, err := readLenPrefixed(rest)
	if err != nil {
		return Wrapper{}, err
	}
	if len(rest) != 0 {
		return Wrapper{}, fmt.Errorf("%w: trailing bytes in wrapper body", ErrInvalidFormat)
	}
	w := Wrapper{Fee: fee, GasLimit: gasLimit, Epoch: epoch, Unshield: unshield}
	if len(pubBytes) > 0 {
		x, y := elliptic.Unmarshal(elliptic.P256(), pubBytes)
		if x == nil {
			return Wrapper{}, fmt.Errorf("%w: malformed wrapper public key", ErrInvalidFormat)
		}
		w.PublicKey = &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	}
	return w, nil
}

func decodeDecrypted(b []byte) (Decrypted, error) {
	if len(b) < 1 {
		return Decrypted{}, fmt.Errorf("%w: decrypted body too short", ErrInvalidFormat)
	}
	if b[0] == 1 {
		return Decrypted{Undecryptable: true}, nil
	}
	return Decrypted{Inner: append([]byte(nil), b[1:]...)}, nil
}

func decodeProtocol(b []byte) (Protocol, error) {
	if len(b) < 1 {
		return Protocol{}, fmt.Errorf("%w: protocol body too short", ErrInvalidFormat)
	}
	return Protocol{Kind: ProtocolKind(b[0]), Payload: append([]byte(nil), b[1:]...)}, nil
}
