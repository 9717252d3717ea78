package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gz(t *testing.T, raw string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	snaps := batch("c1", 3)
	from, to := CaptureRange(snaps)
	daily := models.TierDaily

	in := &Payload{
		Version:       PayloadVersion,
		ArchivedAt:    t0.Add(time.Hour),
		CharacterID:   "c1",
		SourceTier:    models.TierHourly,
		TargetTier:    &daily,
		Reason:        models.ReasonPromotion,
		BucketKey:     "2026-01-02",
		CapturedFrom:  from,
		CapturedTo:    to,
		SnapshotCount: len(snaps),
		Snapshots:     snaps,
	}

	blob, sum, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, Checksum(blob), sum)
	assert.Len(t, sum, 64)

	out, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCaptureRange(t *testing.T) {
	snaps := batch("c1", 3)
	snaps[0], snaps[2] = snaps[2], snaps[0]

	from, to := CaptureRange(snaps)
	assert.Equal(t, t0, from)
	assert.Equal(t, t0.Add(2*time.Hour), to)
}

func TestDecode_Errors(t *testing.T) {
	valid := func(mutate func(map[string]any)) []byte {
		p := map[string]any{
			"version":       1,
			"characterId":   "c1",
			"sourceTier":    "hourly",
			"reason":        "promotion",
			"bucketKey":     "2026-01-02",
			"snapshotCount": 1,
			"snapshots": []any{
				map[string]any{"id": "s1", "profileId": "c1", "capturedAt": "2026-01-02T08:00:00Z"},
			},
		}
		mutate(p)
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		return gz(t, string(raw))
	}

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"not gzip", []byte("plain"), common.ErrMalformedArchive},
		{"not json", gz(t, "{"), common.ErrMalformedArchive},
		{"future version", valid(func(p map[string]any) { p["version"] = 2 }), common.ErrUnsupportedArchiveVersion},
		{"missing version", valid(func(p map[string]any) { delete(p, "version") }), common.ErrUnsupportedArchiveVersion},
		{"count mismatch", valid(func(p map[string]any) { p["snapshotCount"] = 2 }), common.ErrMalformedArchive},
		{"missing capture date", valid(func(p map[string]any) {
			p["snapshots"] = []any{map[string]any{"id": "s1"}}
		}), common.ErrMalformedArchive},
		{"bad capture date", valid(func(p map[string]any) {
			p["snapshots"] = []any{map[string]any{"id": "s1", "capturedAt": "yesterday"}}
		}), common.ErrMalformedArchive},
		{"missing id", valid(func(p map[string]any) {
			p["snapshots"] = []any{map[string]any{"capturedAt": "2026-01-02T08:00:00Z"}}
		}), common.ErrMalformedArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.blob)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	p, err := Decode(valid(func(map[string]any) {}))
	require.NoError(t, err)
	assert.Equal(t, t0, p.Snapshots[0].CapturedAt)
}
