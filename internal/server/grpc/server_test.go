package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/berniemackie97/skillbound-sub002/internal/server/archive"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/monitor"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeJob struct {
	got retention.Options
}

func (f *fakeJob) Run(_ context.Context, opts retention.Options) *retention.Summary {
	f.got = opts
	return &retention.Summary{
		Promoted: map[models.Tier]int{models.TierHourly: 2},
		Deleted:  5,
		DryRun:   opts.DryRun,
	}
}

type fakeMilestones struct {
	markedID   string
	markedType models.MilestoneType
	markedData *models.TaggedValue
	markErr    error
	detected   []models.Milestone
}

func (f *fakeMilestones) DetectForSnapshot(context.Context, string) ([]models.Milestone, error) {
	return f.detected, nil
}

func (f *fakeMilestones) Mark(_ context.Context, id string, typ models.MilestoneType, data *models.TaggedValue) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.markedID, f.markedType, f.markedData = id, typ, data
	return nil
}

type fakeRestorer struct {
	err error
}

func (f *fakeRestorer) Restore(_ context.Context, id string, dryRun bool) (archive.RestoreResult, error) {
	if f.err != nil {
		return archive.RestoreResult{}, f.err
	}
	return archive.RestoreResult{ArchiveID: id, SnapshotCount: 3, Inserted: 3, DryRun: dryRun}, nil
}

type fakeLinks struct {
	err error
}

func (f *fakeLinks) URL(_ context.Context, id string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/" + id, nil
}

type fixture struct {
	job        *fakeJob
	milestones *fakeMilestones
	restorer   *fakeRestorer
	links      *fakeLinks
	repos      *repomanager.InMemoryRepositoryManager
	monitor    *monitor.JobMonitor
	client     *Client
}

// newFixture serves the operator API over an in-process listener and returns
// a client dialled with clientToken.
func newFixture(t *testing.T, serverToken, clientToken string) *fixture {
	t.Helper()

	f := &fixture{
		job:        &fakeJob{},
		milestones: &fakeMilestones{},
		restorer:   &fakeRestorer{},
		links:      &fakeLinks{},
		repos:      repomanager.NewInMemoryRepositoryManager(),
		monitor:    monitor.NewJobMonitor(0),
	}

	srv := NewServer("bufnet", serverToken, Services{
		Job:        f.job,
		Milestones: f.milestones,
		Restorer:   f.restorer,
		Links:      f.links,
		Tx:         dbx.NopTransactor{},
		Repos:      f.repos,
		Monitor:    f.monitor,
	}, logging.Discard())
	srv.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	client, err := Dial("passthrough:///bufnet", clientToken,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	f.client = client

	t.Cleanup(func() {
		_ = client.Close()
		cancel()
		<-done
	})
	return f
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:0", "", Services{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:99999", "", Services{}, logging.Discard())
	assert.Error(t, srv.Run(context.Background()))
}

func TestClient_Run(t *testing.T) {
	f := newFixture(t, "", "")

	sum, err := f.client.Run(context.Background(), retention.Options{DryRun: true, BatchSize: 50, CharacterIDs: []string{"p1"}})
	require.NoError(t, err)

	assert.Equal(t, retention.Options{DryRun: true, BatchSize: 50, CharacterIDs: []string{"p1"}}, f.job.got)
	assert.True(t, sum.DryRun)
	assert.EqualValues(t, 5, sum.Deleted)
	assert.Equal(t, 2, sum.Promoted[models.TierHourly])
}

func TestClient_RunRejectsNegativeBatch(t *testing.T) {
	f := newFixture(t, "", "")

	_, err := f.client.Run(context.Background(), retention.Options{BatchSize: -1})
	assert.ErrorIs(t, err, common.ErrorInvalidInput)
}

func TestClient_MarkAndDetect(t *testing.T) {
	f := newFixture(t, "", "")
	ctx := context.Background()

	err := f.client.Mark(ctx, "s1", models.MilestoneLevel99, models.NewTaggedValue(models.SkillValue{Skill: "attack", Level: 99}))
	require.NoError(t, err)
	assert.Equal(t, "s1", f.milestones.markedID)
	assert.Equal(t, models.MilestoneLevel99, f.milestones.markedType)
	require.NotNil(t, f.milestones.markedData)
	assert.Equal(t, models.SkillValue{Skill: "attack", Level: 99}, f.milestones.markedData.Value)

	found, err := f.client.DetectForSnapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, found)

	f.milestones.detected = []models.Milestone{{Type: models.MilestoneFirstSync, SnapshotID: "s1"}}
	found, err = f.client.DetectForSnapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.MilestoneFirstSync, found[0].Type)

	f.milestones.markErr = fmt.Errorf("mark: %w", common.ErrorNotFound)
	err = f.client.Mark(ctx, "missing", models.MilestoneType("manual"), nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = f.client.Mark(ctx, "", models.MilestoneType("manual"), nil)
	assert.ErrorIs(t, err, common.ErrorInvalidInput)
}

func TestClient_RestoreAndURL(t *testing.T) {
	f := newFixture(t, "", "")
	ctx := context.Background()

	res, err := f.client.Restore(ctx, "arc-1", true)
	require.NoError(t, err)
	assert.Equal(t, archive.RestoreResult{ArchiveID: "arc-1", SnapshotCount: 3, Inserted: 3, DryRun: true}, res)

	url, err := f.client.URL(ctx, "arc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/arc-1", url)

	f.restorer.err = fmt.Errorf("restore: %w", common.ErrChecksumMismatch)
	_, err = f.client.Restore(ctx, "arc-1", false)
	assert.ErrorIs(t, err, common.ErrMalformedArchive)
	assert.ErrorContains(t, err, common.ErrChecksumMismatch.Error())

	f.links.err = objectstore.ErrURLUnsupported
	_, err = f.client.URL(ctx, "arc-1")
	assert.ErrorIs(t, err, objectstore.ErrURLUnsupported)
}

func TestClient_InternalErrorsAreHidden(t *testing.T) {
	f := newFixture(t, "", "")

	f.links.err = errors.New("connection refused by 10.0.0.7")
	_, err := f.client.URL(context.Background(), "arc-1")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.NotContains(t, err.Error(), "10.0.0.7")
}

func TestClient_ListArchivesAndTierStats(t *testing.T) {
	f := newFixture(t, "", "")
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"2026-02-01T10", "2026-02-01T11"} {
		_, err := f.repos.Archives(nil).InsertIfAbsent(ctx, &models.ArchiveRecord{
			ID:         fmt.Sprintf("arc-%d", i),
			ProfileID:  "p1",
			SourceTier: models.TierRealtime,
			Reason:     models.ReasonPromotion,
			BucketKey:  key,
			CreatedAt:  created.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := f.repos.Snapshots(nil).InsertIgnoreConflicts(ctx, []*models.Snapshot{
		{ID: "a", ProfileID: "p1", CapturedAt: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), RetentionTier: models.TierRealtime},
	})
	require.NoError(t, err)

	recs, err := f.client.ListArchives(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "arc-1", recs[0].ID)
	assert.Equal(t, created.Add(time.Hour), recs[0].CreatedAt)

	recs, err = f.client.ListArchives(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = f.client.ListArchives(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = f.client.ListArchives(ctx, "p1", -1)
	assert.ErrorIs(t, err, common.ErrorInvalidInput)

	stats, err := f.client.TierStats(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, models.TierRealtime, stats[0].Tier)
	assert.EqualValues(t, 1, stats[0].Count)
}

func TestOperatorToken(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, "op-secret", "")
	_, err := f.client.Run(ctx, retention.Options{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// health stays open for probes
	health, err := f.client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)

	f = newFixture(t, "op-secret", "wrong")
	_, err = f.client.Run(ctx, retention.Options{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	f = newFixture(t, "op-secret", "op-secret")
	_, err = f.client.Run(ctx, retention.Options{})
	assert.NoError(t, err)
}

func TestHealth_ReportsDegradedJob(t *testing.T) {
	f := newFixture(t, "", "")

	for i := 0; i <= monitor.MaxConsecutiveFailures; i++ {
		f.monitor.RecordFailure(nil, errors.New("db down"))
	}
	health, err := f.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.Job.Healthy)
	assert.Equal(t, "db down", health.Job.LastError)
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("x: %w", common.ErrorNotFound), codes.NotFound},
		{objectstore.ErrNotFound, codes.NotFound},
		{common.ErrUnknownTier, codes.InvalidArgument},
		{common.ErrChecksumMismatch, codes.FailedPrecondition},
		{common.ErrorArchiveConfig, codes.Unavailable},
		{objectstore.ErrURLUnsupported, codes.Unimplemented},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, codeFor(tt.err), tt.err.Error())
	}
}
