package targeting

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// Bucket maps a subject to a stable pseudo-random number in [0, 1).
// The subject id is hashed together with a namespace key (flag key,
// experiment key) so that the same user lands in different buckets for
// different features.
//
// The algorithm is pinned: md5(subjectID + ":" + namespaceKey), first 8 hex
// characters parsed as an unsigned 32-bit integer, divided by 0xFFFFFFFF.
// Persisted assignments are reproducible from the same inputs, so none of
// the three steps may change. MD5 carries no security property here; it is
// only a cheap uniform hash.
func Bucket(subjectID, namespaceKey string) float64 {
	sum := md5.Sum([]byte(subjectID + ":" + namespaceKey))
	digest := hex.EncodeToString(sum[:])

	n, err := strconv.ParseUint(digest[:8], 16, 32)
	if err != nil {
		// Unreachable: the input is always 8 hex characters.
		return 0
	}
	return float64(n) / float64(0xFFFFFFFF)
}

// InRollout reports whether the subject falls inside a percentage rollout
// for the given namespace. Zero or negative percentages exclude everyone,
// 100 or more include everyone.
func InRollout(subjectID, namespaceKey string, percentage float64) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= 100 {
		return true
	}
	return Bucket(subjectID, namespaceKey)*100 < percentage
}
