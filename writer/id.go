package writer

import (
	"crypto/sha256"

	"github.com/google/uuid"

	"github.com/wudi/boletopdf/ir/raw"
)

// idNamespace scopes content-derived file identifiers.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/wudi/boletopdf/file-id"))

// fileID returns the trailer /ID pair. The first element is kept from the
// source document when it has one; the second always identifies this
// revision. Deterministic mode hashes the serialized body instead of using
// random bytes.
func fileID(doc *raw.Document, body []byte, deterministic bool) [2][]byte {
	var revision uuid.UUID
	if deterministic {
		sum := sha256.Sum256(body)
		revision = uuid.NewSHA1(idNamespace, sum[:])
	} else {
		revision = uuid.New()
	}
	current := revision[:]
	permanent := current
	if doc.Trailer != nil {
		if arr, ok := doc.GetArray(doc.Trailer.KV["ID"]); ok && arr.Len() == 2 {
			if first, ok := doc.GetString(arr.Items[0]); ok && len(first) > 0 {
				permanent = first
			}
		}
	}
	return [2][]byte{append([]byte(nil), permanent...), append([]byte(nil), current...)}
}
