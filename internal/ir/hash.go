package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainOutcome = "cronrun/outcome/v1"
	DomainArgs    = "cronrun/args/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// OutcomeID computes the journal key for the call at index in a run.
// The ID is stable: recording the same run twice yields the same keys.
func OutcomeID(runID string, index int, rawText string) (string, error) {
	obj := IRObject{
		"run_id":   IRString(runID),
		"index":    IRInt(int64(index)),
		"raw_text": IRString(rawText),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("OutcomeID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainOutcome, canonical), nil
}

// ArgsHash fingerprints a decoded argument list.
func ArgsHash(args []Literal) (string, error) {
	canonical, err := MarshalCanonical(LiteralsToIRArray(args))
	if err != nil {
		return "", fmt.Errorf("ArgsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArgs, canonical), nil
}
