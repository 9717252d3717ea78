package retention

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/server/archive"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/snapshots"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultBatchSize = 1000

// Archiver is the part of archive.Writer the job depends on.
type Archiver interface {
	Enabled() bool
	Archive(ctx context.Context, req archive.Request) archive.Result
}

// Options scopes one run.
type Options struct {
	DryRun       bool     `json:"dryRun"`
	BatchSize    int      `json:"batchSize"`
	CharacterIDs []string `json:"characterIds,omitempty"`
}

// Summary is the sole report of a run. Counts are diagnostics, not an
// audited ledger: a re-run after a partial failure may count work twice.
type Summary struct {
	Promoted            map[models.Tier]int `json:"promoted"`
	Deleted             int64               `json:"deleted"`
	Archived            int                 `json:"archived"`
	ArchiveExisting     int                 `json:"archiveExisting"`
	ArchiveSkipped      int                 `json:"archiveSkipped"`
	ArchiveErrors       int                 `json:"archiveErrors"`
	MilestonesPreserved int64               `json:"milestonesPreserved"`
	Warnings            []string            `json:"warnings,omitempty"`
	Errors              []string            `json:"errors,omitempty"`
	Fatal               string              `json:"fatal,omitempty"`
	DryRun              bool                `json:"dryRun"`
	StartedAt           time.Time           `json:"startedAt"`
	FinishedAt          time.Time           `json:"finishedAt"`
}

// Success reports whether the run finished without recoverable or fatal errors.
func (s *Summary) Success() bool {
	return len(s.Errors) == 0 && s.Fatal == ""
}

// BucketError is the failure of one bucket step. The run continues with the
// next bucket.
type BucketError struct {
	Character string
	Tier      models.Tier
	Bucket    string
	Err       error
}

func (e *BucketError) Error() string {
	return fmt.Sprintf("%s %s bucket %s: %v", e.Character, e.Tier, e.Bucket, e.Err)
}

func (e *BucketError) Unwrap() error {
	return e.Err
}

// fatalError marks a failure that aborts the whole run.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// bucketOutcome is what one bucket step contributes to the summary.
type bucketOutcome struct {
	promoted bool
	deleted  int64
	archived int
	existing int
	skipped  int
	failed   int
	warning  string
}

// Job promotes, archives and expires snapshots.
type Job struct {
	tx       dbx.Transactor
	repos    repomanager.RepositoryManager
	archiver Archiver
	log      logging.Logger
	tracer   trace.Tracer

	deleteAfterArchive bool
	now                func() time.Time
}

func NewJob(tx dbx.Transactor, repos repomanager.RepositoryManager, archiver Archiver, deleteAfterArchive bool, log logging.Logger) *Job {
	return &Job{
		tx:                 tx,
		repos:              repos,
		archiver:           archiver,
		log:                log,
		tracer:             otel.Tracer("github.com/berniemackie97/skillbound-sub002/internal/server/retention"),
		deleteAfterArchive: deleteAfterArchive,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

type groupKey struct {
	character string
	tier      models.Tier
	bucket    string
}

type group struct {
	key   groupKey
	snaps []*models.Snapshot
}

// groupBy buckets snaps by character and the bucket key at tier, in a
// deterministic order.
func groupBy(snaps []*models.Snapshot, tier models.Tier) ([]*group, error) {
	idx := map[groupKey]*group{}
	var out []*group
	for _, s := range snaps {
		bucket, err := BucketKey(s.CapturedAt, tier)
		if err != nil {
			return nil, err
		}
		k := groupKey{character: s.ProfileID, tier: s.RetentionTier, bucket: bucket}
		g, ok := idx[k]
		if !ok {
			g = &group{key: k}
			idx[k] = g
			out = append(out, g)
		}
		g.snaps = append(g.snaps, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].key, out[j].key
		if a.character != b.character {
			return a.character < b.character
		}
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		return a.bucket < b.bucket
	})
	return out, nil
}

// Run performs one pass: every promotable tier in escalation order, then the
// expiry sweep. A failure to fetch candidates aborts the run; anything that
// goes wrong inside a bucket is recorded and the run moves on.
func (j *Job) Run(ctx context.Context, opts Options) *Summary {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	sum := &Summary{
		Promoted:  map[models.Tier]int{},
		DryRun:    opts.DryRun,
		StartedAt: j.now(),
	}

	ctx, span := j.tracer.Start(ctx, "retention.Run", trace.WithAttributes(
		attribute.Bool("dry_run", opts.DryRun),
		attribute.Int("batch_size", opts.BatchSize),
		attribute.Int("characters", len(opts.CharacterIDs)),
	))
	defer span.End()

	err := j.run(ctx, opts, sum)
	sum.FinishedAt = j.now()

	var fatal *fatalError
	if errors.As(err, &fatal) {
		sum.Fatal = fatal.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, sum.Fatal)
		j.log.Error(ctx, "retention run aborted", "error", sum.Fatal)
		return sum
	}

	span.SetAttributes(
		attribute.Int64("deleted", sum.Deleted),
		attribute.Int("archived", sum.Archived),
		attribute.Int("errors", len(sum.Errors)),
	)
	j.log.Info(ctx, "retention run finished",
		"dry_run", sum.DryRun,
		"promoted", sum.Promoted,
		"deleted", sum.Deleted,
		"archived", sum.Archived,
		"archive_existing", sum.ArchiveExisting,
		"archive_skipped", sum.ArchiveSkipped,
		"archive_errors", sum.ArchiveErrors,
		"milestones", sum.MilestonesPreserved,
		"warnings", len(sum.Warnings),
		"errors", len(sum.Errors),
		"took", sum.FinishedAt.Sub(sum.StartedAt).String(),
	)
	return sum
}

func (j *Job) run(ctx context.Context, opts Options, sum *Summary) error {
	for _, policy := range PromotableTiers() {
		if err := j.promoteTier(ctx, policy, opts, sum); err != nil {
			return err
		}
	}

	if err := j.sweepExpired(ctx, opts, sum); err != nil {
		return err
	}

	n, err := j.repos.Snapshots(j.tx.Conn()).CountMilestones(ctx, opts.CharacterIDs)
	if err != nil {
		// informational only
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("count milestones: %v", err))
	} else {
		sum.MilestonesPreserved = n
	}
	return nil
}

func (j *Job) promoteTier(ctx context.Context, policy TierPolicy, opts Options, sum *Summary) error {
	ctx, span := j.tracer.Start(ctx, "retention.PromoteTier", trace.WithAttributes(
		attribute.String("tier", string(policy.Tier)),
	))
	defer span.End()

	// Rows kept in place (archive failed, disabled or deletion off) stay due,
	// so the scan pages past them instead of refetching the same batch.
	q := snapshotsDueQuery(policy.Tier, j.now().Add(-policy.MaxAge), opts)
	var scanned, buckets int
	defer func() {
		span.SetAttributes(attribute.Int("due", scanned), attribute.Int("buckets", buckets))
	}()

	for {
		due, err := j.repos.Snapshots(j.tx.Conn()).ListDue(ctx, q)
		if err != nil {
			span.RecordError(err)
			return &fatalError{err: fmt.Errorf("fetch due %s snapshots: %w", policy.Tier, err)}
		}
		if len(due) == 0 {
			return nil
		}

		groups, err := groupBy(due, policy.PromoteTo)
		if err != nil {
			return &fatalError{err: err}
		}
		scanned += len(due)
		buckets += len(groups)
		j.log.Debug(ctx, "promoting tier", "tier", string(policy.Tier), "due", len(due), "buckets", len(groups))

		for _, g := range groups {
			out, err := j.promoteBucket(ctx, policy, g, opts.DryRun)
			j.record(ctx, sum, policy.PromoteTo, g.key, out, err)
		}

		if len(due) < q.Limit {
			return nil
		}
		q.After = snapshots.CursorAfter(due)
	}
}

// promoteBucket collapses one group into a single survivor at the target
// tier. Existing survivors of the same target bucket compete as well, so a
// bucket never ends up with two.
func (j *Job) promoteBucket(ctx context.Context, policy TierPolicy, g *group, dryRun bool) (bucketOutcome, error) {
	var out bucketOutcome
	target := policy.PromoteTo
	conn := j.tx.Conn()

	from, to, err := BucketBounds(g.snaps[0].CapturedAt, target)
	if err != nil {
		return out, err
	}
	survivors, err := j.repos.Snapshots(conn).ListInWindow(ctx, g.key.character, target, from, to)
	if err != nil {
		return out, fmt.Errorf("load survivors: %w", err)
	}

	candidates := append(append([]*models.Snapshot(nil), g.snaps...), survivors...)
	winner, losers, ok := SelectBest(candidates)
	if !ok {
		return out, nil
	}
	out.promoted = winner.RetentionTier != target

	if dryRun {
		j.previewLosers(&out, losers)
		return out, nil
	}

	// Losers are archived per tier they currently hold, so a superseded
	// survivor lands in a record of its own tier. A failed archive keeps the
	// losers but still promotes the winner.
	var (
		toDelete    []string
		archiveErrs []error
	)
	for _, part := range splitByTier(losers) {
		doomed, err := j.archiveLosers(ctx, &out, archive.Request{
			CharacterID: g.key.character,
			SourceTier:  part[0].RetentionTier,
			TargetTier:  &target,
			Reason:      models.ReasonPromotion,
			BucketKey:   g.key.bucket,
			Snapshots:   part,
		})
		toDelete = append(toDelete, doomed...)
		if err != nil {
			archiveErrs = append(archiveErrs, err)
		}
	}
	archiveErr := errors.Join(archiveErrs...)

	err = j.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := j.repos.Snapshots(tx)
		if out.promoted {
			if err := repo.UpdateTier(ctx, winner.ID, target, CalculateExpirationDate(winner.CapturedAt, target)); err != nil {
				return fmt.Errorf("promote %s: %w", winner.ID, err)
			}
		}
		if len(toDelete) == 0 {
			return nil
		}
		n, err := repo.DeleteByIDs(ctx, toDelete)
		if err != nil {
			return fmt.Errorf("delete archived losers: %w", err)
		}
		out.deleted = n
		return nil
	})
	if err != nil {
		out.promoted, out.deleted = false, 0
		return out, err
	}
	return out, archiveErr
}

// archiveLosers archives losers and returns the ids that may be deleted. A
// failed archive is returned as an error after the outcome is filled in.
func (j *Job) archiveLosers(ctx context.Context, out *bucketOutcome, req archive.Request) ([]string, error) {
	if len(req.Snapshots) == 0 {
		return nil, nil
	}

	res := j.archiver.Archive(ctx, req)
	j.tally(out, res)

	switch {
	case res.Status == archive.StatusFailed:
		return nil, fmt.Errorf("archive: %w", res.Err)
	case res.Status == archive.StatusDisabled:
		return nil, nil
	case !res.Confirmed():
		out.warning = fmt.Sprintf("archive %s, keeping %d snapshots", res.Status, len(req.Snapshots))
		return nil, nil
	}

	// An existing record may predate some of these rows; archive those on
	// their own before anything is deleted.
	var covered, uncovered []*models.Snapshot
	for _, s := range req.Snapshots {
		if res.Record != nil && res.Record.Contains(s.ID) {
			covered = append(covered, s)
		} else {
			uncovered = append(uncovered, s)
		}
	}
	if len(uncovered) > 0 {
		extra := req
		extra.Snapshots = uncovered
		extra.BucketKey = archive.FingerprintBucketKey(req.BucketKey, ids(uncovered))

		res := j.archiver.Archive(ctx, extra)
		j.tally(out, res)
		switch {
		case res.Status == archive.StatusFailed:
			// covered rows are still safe to drop
			return j.deletable(out, covered), fmt.Errorf("archive leftovers: %w", res.Err)
		case res.Confirmed():
			covered = append(covered, uncovered...)
		default:
			out.warning = fmt.Sprintf("archive %s, keeping %d snapshots", res.Status, len(uncovered))
		}
	}
	return j.deletable(out, covered), nil
}

func (j *Job) deletable(out *bucketOutcome, snaps []*models.Snapshot) []string {
	if len(snaps) == 0 {
		return nil
	}
	if !j.deleteAfterArchive {
		return nil
	}
	var doomed []string
	for _, s := range snaps {
		if !s.IsMilestone {
			doomed = append(doomed, s.ID)
		}
	}
	return doomed
}

func (j *Job) tally(out *bucketOutcome, res archive.Result) {
	switch res.Status {
	case archive.StatusArchived:
		out.archived++
	case archive.StatusExists:
		out.existing++
	case archive.StatusDisabled:
		out.skipped++
	case archive.StatusFailed:
		out.failed++
	}
}

// previewLosers fills a dry-run outcome: what would be deleted if archival
// succeeded, or how many batches archival would skip.
func (j *Job) previewLosers(out *bucketOutcome, losers []*models.Snapshot) {
	if len(losers) == 0 {
		return
	}
	if !j.archiver.Enabled() {
		out.skipped++
		return
	}
	if !j.deleteAfterArchive {
		return
	}
	for _, s := range losers {
		if !s.IsMilestone {
			out.deleted++
		}
	}
}

// sweepExpired archives and deletes rows whose expires_at has passed. A
// group is only removed once the coarser bucket it folds into has a survivor.
func (j *Job) sweepExpired(ctx context.Context, opts Options, sum *Summary) error {
	ctx, span := j.tracer.Start(ctx, "retention.SweepExpired")
	defer span.End()

	q := snapshots.ExpiredQuery{Now: j.now(), CharacterIDs: opts.CharacterIDs, Limit: opts.BatchSize}
	for {
		expired, err := j.repos.Snapshots(j.tx.Conn()).ListExpired(ctx, q)
		if err != nil {
			span.RecordError(err)
			return &fatalError{err: fmt.Errorf("fetch expired snapshots: %w", err)}
		}
		if len(expired) == 0 {
			return nil
		}
		if err := j.sweepPage(ctx, expired, opts.DryRun, sum); err != nil {
			return err
		}
		if len(expired) < q.Limit {
			return nil
		}
		q.After = snapshots.CursorAfter(expired)
	}
}

func (j *Job) sweepPage(ctx context.Context, expired []*models.Snapshot, dryRun bool, sum *Summary) error {
	var groups []*group
	for _, tierGroup := range splitByTier(expired) {
		p, err := Lookup(tierGroup[0].RetentionTier)
		if err != nil || p.Terminal() {
			sum.Warnings = append(sum.Warnings,
				fmt.Sprintf("snapshot %s: expired in %s tier, left in place", tierGroup[0].ID, tierGroup[0].RetentionTier))
			continue
		}
		gs, err := groupBy(tierGroup, p.PromoteTo)
		if err != nil {
			return &fatalError{err: err}
		}
		groups = append(groups, gs...)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		x, y := groups[a].key, groups[b].key
		if x.character != y.character {
			return x.character < y.character
		}
		return tierIndex(x.tier) < tierIndex(y.tier)
	})

	for _, g := range groups {
		out, err := j.expireBucket(ctx, g, dryRun)
		j.record(ctx, sum, "", g.key, out, err)
	}
	return nil
}

func (j *Job) expireBucket(ctx context.Context, g *group, dryRun bool) (bucketOutcome, error) {
	var out bucketOutcome
	p, _ := Lookup(g.key.tier)

	from, to, err := BucketBounds(g.snaps[0].CapturedAt, p.PromoteTo)
	if err != nil {
		return out, err
	}
	survivors, err := j.repos.Snapshots(j.tx.Conn()).ListInWindow(ctx, g.key.character, p.PromoteTo, from, to)
	if err != nil {
		return out, fmt.Errorf("load survivors: %w", err)
	}
	if len(survivors) == 0 {
		out.warning = fmt.Sprintf("%d expired snapshots have no %s survivor yet, waiting for promotion", len(g.snaps), p.PromoteTo)
		return out, nil
	}

	if dryRun {
		j.previewLosers(&out, g.snaps)
		return out, nil
	}

	toDelete, archiveErr := j.archiveLosers(ctx, &out, archive.Request{
		CharacterID: g.key.character,
		SourceTier:  g.key.tier,
		Reason:      models.ReasonExpiration,
		BucketKey:   g.key.bucket,
		Snapshots:   g.snaps,
	})
	if len(toDelete) == 0 {
		return out, archiveErr
	}

	err = j.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := j.repos.Snapshots(tx).DeleteByIDs(ctx, toDelete)
		out.deleted = n
		return err
	})
	if err != nil {
		out.deleted = 0
		return out, fmt.Errorf("delete expired: %w", err)
	}
	return out, archiveErr
}

// record folds one bucket outcome into the summary. promotedTo is empty for
// expiry buckets.
func (j *Job) record(ctx context.Context, sum *Summary, promotedTo models.Tier, key groupKey, out bucketOutcome, err error) {
	if out.promoted && promotedTo != "" {
		sum.Promoted[promotedTo]++
	}
	sum.Deleted += out.deleted
	sum.Archived += out.archived
	sum.ArchiveExisting += out.existing
	sum.ArchiveSkipped += out.skipped
	sum.ArchiveErrors += out.failed

	if err != nil {
		berr := &BucketError{Character: key.character, Tier: key.tier, Bucket: key.bucket, Err: err}
		sum.Errors = append(sum.Errors, berr.Error())
		j.log.Warn(ctx, "bucket failed",
			"character", key.character, "tier", string(key.tier), "bucket", key.bucket, "error", err.Error())
		return
	}
	if out.warning != "" {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s %s bucket %s: %s", key.character, key.tier, key.bucket, out.warning))
		j.log.Warn(ctx, "bucket kept",
			"character", key.character, "tier", string(key.tier), "bucket", key.bucket, "reason", out.warning)
	}
}

func snapshotsDueQuery(tier models.Tier, before time.Time, opts Options) snapshots.DueQuery {
	return snapshots.DueQuery{
		Tier:         tier,
		Before:       before,
		CharacterIDs: opts.CharacterIDs,
		Limit:        opts.BatchSize,
	}
}

func splitByTier(snaps []*models.Snapshot) [][]*models.Snapshot {
	byTier := map[models.Tier][]*models.Snapshot{}
	var order []models.Tier
	for _, s := range snaps {
		if _, ok := byTier[s.RetentionTier]; !ok {
			order = append(order, s.RetentionTier)
		}
		byTier[s.RetentionTier] = append(byTier[s.RetentionTier], s)
	}
	sort.Slice(order, func(a, b int) bool { return tierIndex(order[a]) < tierIndex(order[b]) })

	out := make([][]*models.Snapshot, 0, len(order))
	for _, t := range order {
		out = append(out, byTier[t])
	}
	return out
}

func tierIndex(t models.Tier) int {
	for i, known := range models.AllTiers {
		if known == t {
			return i
		}
	}
	return len(models.AllTiers)
}

func ids(snaps []*models.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID
	}
	return out
}
