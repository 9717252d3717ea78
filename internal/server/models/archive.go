package models

import "time"

// DedupKey identifies one archive batch. At most one ArchiveRecord exists
// per key.
type DedupKey struct {
	ProfileID  string
	SourceTier Tier
	Reason     ArchiveReason
	BucketKey  string
}

// StorageLocation is enough to re-fetch an archive blob without outside state.
type StorageLocation struct {
	Provider string `json:"provider"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ArchiveRecord is the metadata row for one compressed batch of superseded
// snapshots. Records are never updated after insert.
type ArchiveRecord struct {
	ID             string          `json:"id"`
	ProfileID      string          `json:"profileId"`
	SourceTier     Tier            `json:"sourceTier"`
	TargetTier     *Tier           `json:"targetTier,omitempty"`
	Reason         ArchiveReason   `json:"reason"`
	BucketKey      string          `json:"bucketKey"`
	CapturedFrom   time.Time       `json:"capturedFrom"`
	CapturedTo     time.Time       `json:"capturedTo"`
	SnapshotCount  int             `json:"snapshotCount"`
	SnapshotIDs    []string        `json:"snapshotIds"`
	SizeBytes      int64           `json:"sizeBytes"`
	Checksum       string          `json:"checksum"`
	Compressed     bool            `json:"compressed"`
	ArchiveVersion int             `json:"archiveVersion"`
	Storage        StorageLocation `json:"storage"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (r *ArchiveRecord) DedupKey() DedupKey {
	return DedupKey{
		ProfileID:  r.ProfileID,
		SourceTier: r.SourceTier,
		Reason:     r.Reason,
		BucketKey:  r.BucketKey,
	}
}

// Contains reports whether the archived batch includes snapshot id.
func (r *ArchiveRecord) Contains(id string) bool {
	for _, s := range r.SnapshotIDs {
		if s == id {
			return true
		}
	}
	return false
}
