// Package txn implements the ledger's Transaction model: canonical
// encoding, partial/full hashing, signing, and verification, grounded in
// the teacher's internal/core/transaction.go hash-then-sign discipline but
// generalized to the spec's fixed-order binary envelope (spec §6) instead
// of the teacher's JSON-canonicalization approach.
package txn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"
)

var (
	ErrInvalidFormat    = errors.New("txn: invalid format")
	ErrInvalidSignature = errors.New("txn: invalid signature")
	ErrCodeTooLarge     = errors.New("txn: code exceeds maximum length")
	ErrDataTooLarge     = errors.New("txn: data exceeds maximum length")
)

// MaxFieldLength bounds every length-prefixed field to guard against a
// malformed length prefix causing an unbounded allocation while decoding.
const MaxFieldLength = 16 << 20 // 16 MiB

// Transaction is the wire envelope shared by every kind of ledger
// transaction. Code is either literal WASM/VP bytes or a 32-byte hash of
// previously-stored code, distinguished by IsCodeHash.
type Transaction struct {
	Code        []byte
	IsCodeHash  bool
	Data        []byte
	Timestamp   time.Time
	InnerTx     []byte // present only on wrapper transactions
	InnerTxCode []byte // present only on wrapper transactions

	Signature []byte
	PublicKey *ecdsa.PublicKey
}

// New constructs an unsigned transaction carrying literal code and data.
func New(code, data []byte) *Transaction {
	return &Transaction{
		Code:      code,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewWithCodeHash constructs an unsigned transaction referencing previously
// stored code by hash rather than inlining it.
func NewWithCodeHash(codeHash [32]byte, data []byte) *Transaction {
	return &Transaction{
		Code:       codeHash[:],
		IsCodeHash: true,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
}

// encode serializes the envelope in the fixed field order the spec
// mandates: code | is_code_hash_flag | optional(data) | timestamp |
// optional(inner_tx) | optional(inner_tx_code). When partial is true the
// two inner fields are excluded, producing the partial-hash preimage that
// never changes when a wrapper's encrypted payload is later revealed.
func (tx *Transaction) encode(partial bool) ([]byte, error) {
	if len(tx.Code) > MaxFieldLength {
		return nil, ErrCodeTooLarge
	}
	if len(tx.Data) > MaxFieldLength {
		return nil, ErrDataTooLarge
	}
	var buf bytes.Buffer
	if err := writeField(&buf, tx.Code); err != nil {
		return nil, err
	}
	if tx.IsCodeHash {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if err := writeField(&buf, tx.Data); err != nil {
		return nil, err
	}
	var tsBytes [8]byte
	binary.BigEndian.PutUint64(tsBytes[:], uint64(tx.Timestamp.UnixNano()))
	buf.Write(tsBytes[:])
	if !partial {
		if err := writeField(&buf, tx.InnerTx); err != nil {
			return nil, err
		}
		if err := writeField(&buf, tx.InnerTxCode); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, field []byte) error {
	if len(field) > MaxFieldLength {
		return ErrDataTooLarge
	}
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(field)))
	buf.Write(lenBytes[:])
	buf.Write(field)
	return nil
}

func readField(r *bytes.Reader) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated length prefix: %v", ErrInvalidFormat, err)
	}
	n := binary.BigEndian.Uint32(lenBytes[:])
	if n > MaxFieldLength {
		return nil, fmt.Errorf("%w: field length %d exceeds maximum", ErrInvalidFormat, n)
	}
	if n == 0 {
		return nil, nil
	}
	field := make([]byte, n)
	if _, err := io.ReadFull(r, field); err != nil {
		return nil, fmt.Errorf("%w: truncated field: %v", ErrInvalidFormat, err)
	}
	return field, nil
}

// PartialHash returns the identity hash used for signing and for matching
// a decrypted payload against its committed wrapper (spec §3, §4.2): it
// deliberately excludes InnerTx and InnerTxCode.
func (tx *Transaction) PartialHash() ([32]byte, error) {
	enc, err := tx.encode(true)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(enc), nil
}

// FullHash hashes the complete canonical encoding, including inner blobs.
func (tx *Transaction) FullHash() ([32]byte, error) {
	enc, err := tx.encode(false)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(enc), nil
}

// Sign computes the partial hash and signs it with sk, recording the
// signer's public key alongside the signature.
func (tx *Transaction) Sign(sk *ecdsa.PrivateKey) error {
	if sk == nil {
		return fmt.Errorf("%w: nil signing key", ErrInvalidFormat)
	}
	h, err := tx.PartialHash()
	if err != nil {
		return err
	}
	r, s, err := ecdsa.Sign(rand.Reader, sk, h[:])
	if err != nil {
		return fmt.Errorf("txn: sign: %w", err)
	}
	tx.Signature = encodeRS(r, s)
	tx.PublicKey = &sk.PublicKey
	return nil
}

// VerifySignature reports whether tx.Signature is a valid signature over
// tx's partial hash under tx.PublicKey. A wrapper that fails this check
// must never enter the queue or consume fees (spec §4.2).
func (tx *Transaction) VerifySignature() error {
	if tx.PublicKey == nil || tx.PublicKey.Curve != elliptic.P256() {
		return fmt.Errorf("%w: missing or unsupported public key", ErrInvalidSignature)
	}
	if len(tx.Signature) == 0 {
		return fmt.Errorf("%w: empty signature", ErrInvalidSignature)
	}
	r, s, err := decodeRS(tx.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	h, err := tx.PartialHash()
	if err != nil {
		return err
	}
	if !ecdsa.Verify(tx.PublicKey, h[:], r, s) {
		return ErrInvalidSignature
	}
	return nil
}

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

// ToBytes serializes the complete transaction, including the signature and
// public key, using the same field-tagged scheme as the canonical
// envelope, so the result is exactly what a node persists to storage.
func (tx *Transaction) ToBytes() ([]byte, error) {
	enc, err := tx.encode(false)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(enc)
	if err := writeField(&buf, tx.Signature); err != nil {
		return nil, err
	}
	var pubBytes []byte
	if tx.PublicKey != nil {
		pubBytes = elliptic.Marshal(elliptic.P256(), tx.PublicKey.X, tx.PublicKey.Y)
	}
	if err := writeField(&buf, pubBytes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromBytes parses the encoding produced by ToBytes.
func FromBytes(b []byte) (*Transaction, error) {
	r := bytes.NewReader(b)
	code, err := readField(r)
	if err != nil {
		return nil, err
	}
	flag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing is_code_hash flag", ErrInvalidFormat)
	}
	data, err := readField(r)
	if err != nil {
		return nil, err
	}
	var tsBytes [8]byte
	if _, err := io.ReadFull(r, tsBytes[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated timestamp: %v", ErrInvalidFormat, err)
	}
	ts := time.Unix(0, int64(binary.BigEndian.Uint64(tsBytes[:]))).UTC()
	innerTx, err := readField(r)
	if err != nil {
		return nil, err
	}
	innerTxCode, err := readField(r)
	if err != nil {
		return nil, err
	}
	sig, err := readField(r)
	if err != nil {
		return nil, err
	}
	pubBytes, err := readField(r)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		Code:        code,
		IsCodeHash:  flag == 1,
		Data:        data,
		Timestamp:   ts,
		InnerTx:     innerTx,
		InnerTxCode: innerTxCode,
		Signature:   sig,
	}
	if len(pubBytes) > 0 {
		x, y := elliptic.Unmarshal(elliptic.P256(), pubBytes)
		if x == nil {
			return nil, fmt.Errorf("%w: malformed public key", ErrInvalidFormat)
		}
		tx.PublicKey = &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	}
	return tx, nil
}
