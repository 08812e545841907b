// Package identity derives stable deduplication keys for investment records.
package identity

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/christosporios/strategic-investments-gr/internal/model"
)

// Kind names which reference field the identity was derived from, in
// decreasing order of strength.
type Kind string

const (
	KindCode Kind = "code"
	KindURL  Kind = "url"
	KindHash Kind = "hash"
)

// Identity is the storage-level key for an investment. Two records with equal
// Identity are treated as the same real-world entity; this is weaker than the
// cross-source deduplicator's semantic matching.
type Identity struct {
	Kind  Kind
	Value string
}

// Weak reports whether the identity was derived from record content rather
// than an identity-bearing reference field. Weak identities must be surfaced
// downstream as such.
func (id Identity) Weak() bool {
	return id.Kind == KindHash
}

func (id Identity) String() string {
	return string(id.Kind) + ":" + id.Value
}

// Identify resolves the identity of a record: registry code if present, else
// a hash of the source URL, else a hash of (name, beneficiary, totalAmount).
// Deterministic and platform-independent.
func Identify(inv *model.Investment) Identity {
	if ada := strings.TrimSpace(inv.Reference.DiavgeiaADA); ada != "" {
		return Identity{Kind: KindCode, Value: ada}
	}
	if u := strings.TrimSpace(inv.Reference.URL); u != "" {
		return Identity{Kind: KindURL, Value: stableHash(u)}
	}
	content := inv.Name + "|" + inv.Beneficiary + "|" + strconv.FormatFloat(inv.TotalAmount, 'f', -1, 64)
	return Identity{Kind: KindHash, Value: stableHash(content)}
}

// stableHash returns the SHA-256 hex digest of s.
func stableHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}
