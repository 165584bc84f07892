// Package totp implements time-based one-time password generation per
// RFC 6238 (TOTP) over the RFC 4226 (HOTP) truncation scheme.
//
// Generate is a pure function: the timestamp is supplied by the caller so
// that server-clock offsets can be corrected before the time bucket is
// computed.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
)

// Algorithm selects the HMAC hash used for code derivation.
type Algorithm int

const (
	SHA1 Algorithm = iota
	SHA256
	SHA512
)

var (
	ErrInvalidDigits = errors.New("totp: digits must be between 1 and 10")
	ErrInvalidTime   = errors.New("totp: seconds must be positive")
	ErrInvalidPeriod = errors.New("totp: period must be positive")
)

func (a Algorithm) hasher() func() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New
	case SHA512:
		return sha512.New
	default:
		return sha1.New
	}
}

// Generate derives a zero-padded numeric code of exactly digits characters
// from the shared secret and the time bucket containing seconds.
// Callers correcting for server clock skew should pass
// localSeconds - serverTimeOffset.
func Generate(secret []byte, digits int, period int64, alg Algorithm, seconds int64) (string, error) {
	if digits < 1 || digits > 10 {
		return "", ErrInvalidDigits
	}
	if seconds <= 0 {
		return "", ErrInvalidTime
	}
	if period <= 0 {
		return "", ErrInvalidPeriod
	}

	counter := uint64(seconds / period)
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(alg.hasher(), secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// RFC 4226 dynamic truncation: the low 4 bits of the last byte pick
	// the offset of a 4-byte big-endian word; the sign bit is masked off.
	offset := sum[len(sum)-1] & 0x0f
	value := uint64(binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff)

	// uint64 so a 10-digit modulus does not overflow.
	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, value%mod), nil
}
