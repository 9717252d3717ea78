// Package archive moves superseded snapshots to object storage and back.
//
// An archive is one gzip-compressed JSON envelope per batch, addressed by a
// deterministic object key and described by an ArchiveRecord row whose dedup
// key makes archival idempotent.
package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/klauspost/compress/gzip"
)

// PayloadVersion is the envelope version written by this build. Restore
// accepts versions up to and including it.
const PayloadVersion = 1

// Payload is the self-describing envelope stored in object storage. Its
// field names are part of the on-disk format.
type Payload struct {
	Version       int                  `json:"version"`
	ArchivedAt    time.Time            `json:"archivedAt"`
	CharacterID   string               `json:"characterId"`
	SourceTier    models.Tier          `json:"sourceTier"`
	TargetTier    *models.Tier         `json:"targetTier,omitempty"`
	Reason        models.ArchiveReason `json:"reason"`
	BucketKey     string               `json:"bucketKey"`
	CapturedFrom  time.Time            `json:"capturedFrom"`
	CapturedTo    time.Time            `json:"capturedTo"`
	SnapshotCount int                  `json:"snapshotCount"`
	Snapshots     []*models.Snapshot   `json:"snapshots"`
}

// CaptureRange returns the earliest and latest capture times of snaps.
func CaptureRange(snaps []*models.Snapshot) (from, to time.Time) {
	for i, s := range snaps {
		if i == 0 || s.CapturedAt.Before(from) {
			from = s.CapturedAt
		}
		if i == 0 || s.CapturedAt.After(to) {
			to = s.CapturedAt
		}
	}
	return from.UTC(), to.UTC()
}

// Encode serializes and compresses p. The checksum is the hex sha256 of the
// compressed bytes.
func Encode(p *Payload) (compressed []byte, checksum string, err error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("encode archive payload: %w", err)
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, "", err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, "", fmt.Errorf("compress archive payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("compress archive payload: %w", err)
	}

	compressed = buf.Bytes()
	return compressed, Checksum(compressed), nil
}

func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Decode decompresses and validates an archive blob. Every snapshot must
// carry a capture date and the envelope count must match its contents.
func Decode(compressed []byte) (*Payload, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedArchive, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedArchive, err)
	}

	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedArchive, err)
	}
	if head.Version < 1 || head.Version > PayloadVersion {
		return nil, fmt.Errorf("%w: %d", common.ErrUnsupportedArchiveVersion, head.Version)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedArchive, err)
	}
	if p.SnapshotCount != len(p.Snapshots) {
		return nil, fmt.Errorf("%w: header counts %d snapshots, found %d",
			common.ErrMalformedArchive, p.SnapshotCount, len(p.Snapshots))
	}
	for i, s := range p.Snapshots {
		if s == nil || s.ID == "" {
			return nil, fmt.Errorf("%w: snapshot %d has no id", common.ErrMalformedArchive, i)
		}
		if s.CapturedAt.IsZero() {
			return nil, fmt.Errorf("%w: snapshot %s has no capture date", common.ErrMalformedArchive, s.ID)
		}
		s.CapturedAt = s.CapturedAt.UTC()
		if s.ExpiresAt != nil {
			t := s.ExpiresAt.UTC()
			s.ExpiresAt = &t
		}
	}
	return &p, nil
}
