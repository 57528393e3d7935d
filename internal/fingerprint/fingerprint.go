// Package fingerprint computes the two digests that anchor change detection:
// a stable job identity and a content-version fingerprint. Both are SHA-256
// hex strings so they survive process restarts and database round trips
// without any in-memory state.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Identity derives the stable key for one posting lineage from the source
// kind, the source account, and the posting's external ID. The same triple
// always yields the same key; distinct triples never collide because the
// parts are joined with a newline, which collapseSpace strips from every
// input, so no two triples can produce the same joined string.
func Identity(sourceKind, sourceAccount, externalID string) string {
	composite := strings.Join([]string{
		strings.ToLower(collapseSpace(sourceKind)),
		strings.ToLower(collapseSpace(sourceAccount)),
		collapseSpace(externalID),
	}, "\n")
	return hexDigest(composite)
}

// Fingerprint digests the normalized (title, description, location) of a
// posting. Casing and whitespace differences do not change the result; any
// visible content change does.
func Fingerprint(title, description, location string) string {
	composite := strings.Join([]string{
		normalize(title),
		normalize(description),
		normalize(location),
	}, "\n")
	return hexDigest(composite)
}

func hexDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// normalize lowercases, trims, and collapses whitespace runs so immaterial
// formatting differences from the source API hash identically.
func normalize(s string) string {
	return strings.ToLower(collapseSpace(s))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
