package archive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/berniemackie97/skillbound-sub002/internal/server/archive"

// Status is the outcome of one Archive call.
type Status string

const (
	StatusArchived Status = "archived"
	StatusExists   Status = "exists"
	StatusSkipped  Status = "skipped"
	StatusDisabled Status = "disabled"
	StatusFailed   Status = "failed"
)

// Request describes one batch. TargetTier is nil for expirations.
type Request struct {
	CharacterID string
	SourceTier  models.Tier
	TargetTier  *models.Tier
	Reason      models.ArchiveReason
	BucketKey   string
	Snapshots   []*models.Snapshot
}

func (r Request) dedupKey() models.DedupKey {
	return models.DedupKey{
		ProfileID:  r.CharacterID,
		SourceTier: r.SourceTier,
		Reason:     r.Reason,
		BucketKey:  r.BucketKey,
	}
}

// Result never carries a Go error for expected outcomes. Err is set only for
// StatusFailed.
type Result struct {
	Status Status
	Record *models.ArchiveRecord
	Err    error
}

// Confirmed reports whether the batch is known to be in durable storage, which
// is the precondition for deleting its rows.
func (r Result) Confirmed() bool {
	return r.Status == StatusArchived || r.Status == StatusExists
}

func failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// WriterConfig holds the deployment knobs of the writer.
type WriterConfig struct {
	Prefix  string
	Timeout time.Duration
}

// Writer archives snapshot batches. A Writer built with a nil store reports
// every batch as disabled.
type Writer struct {
	store  objectstore.Store
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	cfg    WriterConfig
	log    logging.Logger
	tracer trace.Tracer

	now   func() time.Time
	newID func() string
}

func NewWriter(store objectstore.Store, tx dbx.Transactor, repos repomanager.RepositoryManager, cfg WriterConfig, log logging.Logger) *Writer {
	return &Writer{
		store:  store,
		tx:     tx,
		repos:  repos,
		cfg:    cfg,
		log:    log,
		tracer: otel.Tracer(tracerName),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// Enabled reports whether archival storage is configured.
func (w *Writer) Enabled() bool {
	return w.store != nil
}

// Archive writes req.Snapshots to object storage and records the batch.
// Calling it again with the same dedup key returns the first record as
// StatusExists without touching storage. A stored blob is never replaced, so
// the checksum of whichever record wins always matches the object.
func (w *Writer) Archive(ctx context.Context, req Request) Result {
	ctx, span := w.tracer.Start(ctx, "archive.Write", trace.WithAttributes(
		attribute.String("character", req.CharacterID),
		attribute.String("source_tier", string(req.SourceTier)),
		attribute.String("reason", string(req.Reason)),
		attribute.String("bucket", req.BucketKey),
		attribute.Int("snapshots", len(req.Snapshots)),
	))
	defer span.End()

	res := w.archive(ctx, req)
	span.SetAttributes(attribute.String("status", string(res.Status)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (w *Writer) archive(ctx context.Context, req Request) Result {
	if len(req.Snapshots) == 0 {
		return Result{Status: StatusSkipped}
	}
	if !w.Enabled() {
		return Result{Status: StatusDisabled}
	}

	repo := w.repos.Archives(w.tx.Conn())

	existing, err := repo.FindByDedupKey(ctx, req.dedupKey())
	switch {
	case err == nil:
		return Result{Status: StatusExists, Record: existing}
	case !errors.Is(err, common.ErrorNotFound):
		return failed(fmt.Errorf("dedup lookup: %w", err))
	}

	rec, body, err := w.build(req)
	if err != nil {
		return failed(err)
	}

	switch err := w.put(ctx, rec, body); {
	case errors.Is(err, objectstore.ErrExists):
		// The key is already taken, by a concurrent writer of this batch or by
		// an earlier attempt that never got recorded. The stored blob is kept.
		if res, settled := w.adoptStored(ctx, req, rec); settled {
			return res
		}
	case err != nil:
		return failed(err)
	}

	inserted, err := repo.InsertIfAbsent(ctx, rec)
	if err != nil {
		return failed(fmt.Errorf("persist archive record: %w", err))
	}
	if !inserted {
		// A concurrent writer recorded the same batch first.
		winner, err := repo.FindByDedupKey(ctx, req.dedupKey())
		if err != nil {
			return failed(fmt.Errorf("load concurrent archive record: %w", err))
		}
		return Result{Status: StatusExists, Record: winner}
	}

	w.log.Info(ctx, "snapshots archived",
		"character", req.CharacterID,
		"tier", string(req.SourceTier),
		"reason", string(req.Reason),
		"bucket", req.BucketKey,
		"count", rec.SnapshotCount,
		"bytes", rec.SizeBytes,
		"key", rec.Storage.Key,
	)
	return Result{Status: StatusArchived, Record: rec}
}

func (w *Writer) build(req Request) (*models.ArchiveRecord, []byte, error) {
	from, to := CaptureRange(req.Snapshots)
	now := w.now()

	body, checksum, err := Encode(&Payload{
		Version:       PayloadVersion,
		ArchivedAt:    now,
		CharacterID:   req.CharacterID,
		SourceTier:    req.SourceTier,
		TargetTier:    req.TargetTier,
		Reason:        req.Reason,
		BucketKey:     req.BucketKey,
		CapturedFrom:  from,
		CapturedTo:    to,
		SnapshotCount: len(req.Snapshots),
		Snapshots:     req.Snapshots,
	})
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(req.Snapshots))
	for i, s := range req.Snapshots {
		ids[i] = s.ID
	}

	loc := w.store.Location()
	rec := &models.ArchiveRecord{
		ID:             w.newID(),
		ProfileID:      req.CharacterID,
		SourceTier:     req.SourceTier,
		TargetTier:     req.TargetTier,
		Reason:         req.Reason,
		BucketKey:      req.BucketKey,
		CapturedFrom:   from,
		CapturedTo:     to,
		SnapshotCount:  len(req.Snapshots),
		SnapshotIDs:    ids,
		SizeBytes:      int64(len(body)),
		Checksum:       checksum,
		Compressed:     true,
		ArchiveVersion: PayloadVersion,
		Storage: models.StorageLocation{
			Provider: loc.Provider,
			Bucket:   loc.Bucket,
			Key:      ObjectKey(w.cfg.Prefix, req.CharacterID, req.Reason, req.SourceTier, req.TargetTier, req.BucketKey),
			Region:   loc.Region,
			Endpoint: loc.Endpoint,
		},
		CreatedAt: now,
	}
	return rec, body, nil
}

// adoptStored reconciles rec with a blob already stored under its key. It
// settles the call when another record already covers the batch or when the
// blob cannot be adopted; otherwise rec now describes the stored bytes.
func (w *Writer) adoptStored(ctx context.Context, req Request, rec *models.ArchiveRecord) (Result, bool) {
	repo := w.repos.Archives(w.tx.Conn())

	winner, err := repo.FindByDedupKey(ctx, req.dedupKey())
	switch {
	case err == nil:
		return Result{Status: StatusExists, Record: winner}, true
	case !errors.Is(err, common.ErrorNotFound):
		return failed(fmt.Errorf("dedup lookup: %w", err)), true
	}

	ctx, cancel := withTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	blob, err := w.store.Get(ctx, rec.Storage.Bucket, rec.Storage.Key)
	if err != nil {
		return failed(fmt.Errorf("read existing archive: %w", err)), true
	}
	p, err := Decode(blob)
	if err != nil {
		return failed(fmt.Errorf("existing archive %s: %w", rec.Storage.Key, err)), true
	}
	if !sameSnapshots(p.Snapshots, rec.SnapshotIDs) {
		return failed(fmt.Errorf("%w: %s holds a different batch", objectstore.ErrExists, rec.Storage.Key)), true
	}

	rec.Checksum = Checksum(blob)
	rec.SizeBytes = int64(len(blob))
	w.log.Warn(ctx, "adopting stored archive", "key", rec.Storage.Key, "bucket", req.BucketKey)
	return Result{}, false
}

func sameSnapshots(snaps []*models.Snapshot, ids []string) bool {
	if len(snaps) != len(ids) {
		return false
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, s := range snaps {
		if !want[s.ID] {
			return false
		}
		delete(want, s.ID)
	}
	return len(want) == 0
}

// withTimeout bounds an object-storage call. d <= 0 leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (w *Writer) put(ctx context.Context, rec *models.ArchiveRecord, body []byte) error {
	ctx, cancel := withTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	target := "none"
	if rec.TargetTier != nil {
		target = string(*rec.TargetTier)
	}
	meta := map[string]string{
		"checksum":        rec.Checksum,
		"snapshot-count":  strconv.Itoa(rec.SnapshotCount),
		"reason":          string(rec.Reason),
		"source-tier":     string(rec.SourceTier),
		"target-tier":     target,
		"archive-version": strconv.Itoa(rec.ArchiveVersion),
	}

	if err := w.store.Put(ctx, rec.Storage.Bucket, rec.Storage.Key, body, meta); err != nil {
		return fmt.Errorf("store archive: %w", err)
	}
	return nil
}
