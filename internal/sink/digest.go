package sink

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"feedflow/models"
)

// batchDigest names a batch by its content: the BLAKE3 hash of its sorted
// dedup keys. The same set of records always yields the same digest, so a
// redelivered batch maps onto the object it already produced.
func batchDigest(records []models.Record) string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.DedupKey()
	}
	sort.Strings(keys)

	h := blake3.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// uniqueByKey drops records whose key appeared earlier in the batch or is
// reported as already written by seen. Records without a key are kept.
func uniqueByKey(records []models.Record, seen func(string) bool) []models.Record {
	out := make([]models.Record, 0, len(records))
	inBatch := make(map[string]struct{}, len(records))
	for _, r := range records {
		k := r.DedupKey()
		if k != "" {
			if _, dup := inBatch[k]; dup {
				continue
			}
			if seen != nil && seen(k) {
				continue
			}
			inBatch[k] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
