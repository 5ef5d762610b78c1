package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/cases"

	"github.com/roach88/jsonapiq/internal/queryspec"
)

// Domain prefixes for fingerprints. The version suffix allows changing the
// encoding without colliding with stored fingerprints.
const (
	DomainQuerySpec = "jsonapiq/queryspec/v1"
	DomainInput     = "jsonapiq/input/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecJSON returns the canonical JSON encoding of a QuerySpec.
func SpecJSON(q *queryspec.QuerySpec) ([]byte, error) {
	m, err := q.ToMap()
	if err != nil {
		return nil, fmt.Errorf("SpecJSON: %w", err)
	}
	return Marshal(m)
}

// Fingerprint returns a stable content hash of a QuerySpec. Two passes over
// the same input produce the same fingerprint.
func Fingerprint(q *queryspec.QuerySpec) (string, error) {
	data, err := SpecJSON(q)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: %w", err)
	}
	return hashWithDomain(DomainQuerySpec, data), nil
}

// InputFingerprint hashes a raw query string together with the resource it
// was compiled for.
func InputFingerprint(rawQuery, resource string) string {
	return hashWithDomain(DomainInput, []byte(resource+"\x00"+rawQuery))
}

// FoldEqual reports whether two resource names are equal under Unicode case
// folding.
func FoldEqual(a, b string) bool {
	if a == b {
		return true
	}
	// Casers carry state and must not be shared across goroutines.
	return cases.Fold().String(a) == cases.Fold().String(b)
}
