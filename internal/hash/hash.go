// Package hash computes the stable per-entry content digests that the
// sync planners use as their sole change signal. Digests are
// deterministic across runs and machines: fields are folded into
// SHA-256 under a length-prefixed encoding so that concatenation
// ambiguity cannot alias two different contents.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/locforge/locforge/internal/model"
)

// Size is the hex-encoded digest length.
const Size = sha256.Size * 2

func writeField(h interface{ Write(p []byte) (int, error) }, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// Content hashes a single (value, comment) pair, the grain tracked per
// (key, language, pluralForm) in sync state records.
func Content(value, comment string) string {
	h := sha256.New()
	writeField(h, value)
	writeField(h, comment)
	return hex.EncodeToString(h.Sum(nil))
}

// Entry hashes a full resource entry: value, comment, and the ordered
// plural-form map. Formatting metadata of the containing file never
// participates.
func Entry(e model.ResourceEntry) string {
	h := sha256.New()
	writeField(h, e.Value)
	writeField(h, e.Comment)
	if e.IsPlural {
		writeField(h, "plural")
		for _, f := range e.Plurals {
			writeField(h, string(f.Category))
			writeField(h, f.Value)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// File hashes every entry of a resource file in order, keyed by entry
// key. Used by the GitHub reconciler to decide whether a commit touched
// a file at all before diffing per entry.
func File(f *model.ResourceFile) string {
	h := sha256.New()
	for _, e := range f.Entries {
		writeField(h, e.Key)
		writeField(h, Entry(e))
	}
	return hex.EncodeToString(h.Sum(nil))
}
