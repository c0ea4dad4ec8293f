package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSpec    = "monbridge/spec/v1"
	DomainVerdict = "monbridge/verdict/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash identifies a specification text. The text is NFC normalized
// through canonical string encoding so equivalent Unicode spellings match.
func SpecHash(spec string) string {
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return hashWithDomain(DomainSpec, canonical)
}

// VerdictDigest folds a sequence of flat verdict arrays into one digest.
// Two replays of the same call sequence against equivalent monitors must
// produce the same digest. Non-finite values are digested in their
// EncodeFloat form.
func VerdictDigest(verdicts [][]float64) (string, error) {
	list := make([]any, len(verdicts))
	for i, v := range verdicts {
		list[i] = EncodeFloats(v)
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("VerdictDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainVerdict, canonical), nil
}
