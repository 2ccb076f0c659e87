package incident

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/linnemanlabs/oncall/internal/alert"
)

// Fingerprinter derives stable correlation keys from alert semantic
// fields. Only the configured label subset participates, so
// high-cardinality labels (request IDs, pod hashes) never fragment
// correlation.
type Fingerprinter struct {
	keys []string
}

// NewFingerprinter creates a fingerprinter over the given label keys.
// The key order given here does not matter; canonicalization sorts.
func NewFingerprinter(labelKeys []string) *Fingerprinter {
	keys := append([]string(nil), labelKeys...)
	sort.Strings(keys)
	return &Fingerprinter{keys: keys}
}

// Compute returns the correlation key for an alert. Identical service
// and identical configured-label values yield an identical fingerprint
// regardless of label map insertion order or extra label keys. Fails
// with alert.ErrInvalid when service is empty.
func (f *Fingerprinter) Compute(al *alert.Alert) (string, error) {
	if al.Service == "" {
		return "", fmt.Errorf("%w: service is required for fingerprinting", alert.ErrInvalid)
	}

	canonical := make([]byte, 0, 64)
	canonical = append(canonical, "service="...)
	canonical = append(canonical, al.Service...)
	for _, k := range f.keys {
		v, ok := al.Labels[k]
		if !ok {
			continue
		}
		canonical = append(canonical, '\n')
		canonical = append(canonical, k...)
		canonical = append(canonical, '=')
		canonical = append(canonical, v...)
	}

	digest := sha1.Sum(canonical)
	return hex.EncodeToString(digest[:]), nil
}
