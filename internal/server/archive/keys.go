package archive

import (
	"sort"
	"strconv"
	"strings"

	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/cespare/xxhash/v2"
)

const DefaultPrefix = "snapshots"

var keyReplacer = strings.NewReplacer(":", "-", "/", "_", " ", "_")

func segment(s string) string {
	return keyReplacer.Replace(s)
}

// ObjectKey derives the storage key of a batch:
//
//	{prefix}/{character}/{reason}/{source}-to-{target|none}/{bucket}.json.gz
//
// Equal inputs always produce the same key so retries land on the same object
// rather than duplicating it.
func ObjectKey(prefix, characterID string, reason models.ArchiveReason, source models.Tier, target *models.Tier, bucketKey string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	to := "none"
	if target != nil {
		to = string(*target)
	}
	return strings.Join([]string{
		strings.Trim(prefix, "/"),
		segment(characterID),
		string(reason),
		string(source) + "-to-" + to,
		segment(bucketKey) + ".json.gz",
	}, "/")
}

// FingerprintBucketKey derives a bucket key for a batch of snapshots that
// landed in an already archived bucket after its archive was written. The
// suffix is an xxhash of the sorted ids, so the same leftover batch maps to
// the same key on every run.
func FingerprintBucketKey(bucketKey string, snapshotIDs []string) string {
	ids := append([]string(nil), snapshotIDs...)
	sort.Strings(ids)
	sum := xxhash.Sum64String(strings.Join(ids, "\n"))
	return bucketKey + "+" + strconv.FormatUint(sum, 16)
}
