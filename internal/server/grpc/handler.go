package grpc

import (
	"context"
	"net/http"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/netx"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/monitor"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type MarkRequest struct {
	SnapshotID string               `json:"snapshotId"`
	Type       models.MilestoneType `json:"type"`
	Data       *models.TaggedValue  `json:"data,omitempty"`
}

type SnapshotRequest struct {
	SnapshotID string `json:"snapshotId"`
}

type ArchiveRequest struct {
	ArchiveID string `json:"archiveId"`
	DryRun    bool   `json:"dryRun,omitempty"`
}

// CharacterRequest names a character. Limit 0 lists every archive.
type CharacterRequest struct {
	CharacterID string `json:"characterId"`
	Limit       int    `json:"limit,omitempty"`
}

type URLResponse struct {
	URL string `json:"url"`
}

// HealthResponse mirrors GET /v1/health. An unhealthy job is reported in the
// body, not as an error.
type HealthResponse struct {
	Status string         `json:"status"`
	Job    monitor.Status `json:"job"`
}

// RunJob serves the Run RPC: it runs the job synchronously. A fatal run is
// not an RPC error: the summary carries it.
func (s *Server) RunJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var opts retention.Options
	if err := decode(req, &opts); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if opts.BatchSize < 0 {
		return nil, status.Error(codes.InvalidArgument, "batchSize must not be negative")
	}
	return reply(s.svc.Job.Run(ctx, opts))
}

func (s *Server) MarkMilestone(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in MarkRequest
	if err := decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.SnapshotID == "" {
		return nil, status.Error(codes.InvalidArgument, "snapshotId is required")
	}
	if err := s.svc.Milestones.Mark(ctx, in.SnapshotID, in.Type, in.Data); err != nil {
		return nil, s.fail(ctx, "mark milestone", err)
	}
	return &structpb.Struct{}, nil
}

func (s *Server) DetectMilestones(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SnapshotRequest
	if err := decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	found, err := s.svc.Milestones.DetectForSnapshot(ctx, in.SnapshotID)
	if err != nil {
		return nil, s.fail(ctx, "detect milestones", err)
	}
	if found == nil {
		found = []models.Milestone{}
	}
	return reply(listBody[models.Milestone]{Items: found})
}

func (s *Server) RestoreArchive(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ArchiveRequest
	if err := decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.svc.Restorer.Restore(ctx, in.ArchiveID, in.DryRun)
	if err != nil {
		return nil, s.fail(ctx, "restore archive", err)
	}
	return reply(res)
}

func (s *Server) ArchiveURL(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ArchiveRequest
	if err := decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	url, err := s.svc.Links.URL(ctx, in.ArchiveID)
	if err != nil {
		return nil, s.fail(ctx, "archive url", err)
	}
	return reply(URLResponse{URL: url})
}

func (s *Server) ListArchives(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CharacterRequest
	if err := decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	recs, err := s.svc.Repos.Archives(s.svc.Tx.Conn()).ListByProfile(ctx, in.CharacterID, in.Limit)
	if err != nil {
		return nil, s.fail(ctx, "list archives", err)
	}
	if recs == nil {
		recs = []*models.ArchiveRecord{}
	}
	return reply(listBody[*models.ArchiveRecord]{Items: recs})
}

func (s *Server) TierStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CharacterRequest
	if err := decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	stats, err := s.svc.Repos.Snapshots(s.svc.Tx.Conn()).TierStats(ctx, in.CharacterID, s.now())
	if err != nil {
		return nil, s.fail(ctx, "tier stats", err)
	}
	if stats == nil {
		stats = []models.TierStat{}
	}
	return reply(listBody[models.TierStat]{Items: stats})
}

func (s *Server) Health(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := s.svc.Monitor.Status()
	resp := HealthResponse{Status: "healthy", Job: st}
	if !st.Healthy {
		resp.Status = "degraded"
	}
	return reply(resp)
}

func reply(v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, common.ErrorInternal.Error())
	}
	return out, nil
}

// fail maps err onto a status. Internal errors are logged and reported
// without their detail.
func (s *Server) fail(ctx context.Context, op string, err error) error {
	code := codeFor(err)
	if code == codes.Internal {
		s.logger.Error(ctx, op+" failed", "error", err.Error())
		return status.Error(code, common.ErrorInternal.Error())
	}
	return status.Error(code, err.Error())
}

func codeFor(err error) codes.Code {
	switch netx.StatusFor(err) {
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusNotImplemented:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}
