package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/server/archive"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/monitor"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"google.golang.org/grpc"
)

type JobRunner interface {
	Run(ctx context.Context, opts retention.Options) *retention.Summary
}

type MilestoneService interface {
	DetectForSnapshot(ctx context.Context, snapshotID string) ([]models.Milestone, error)
	Mark(ctx context.Context, snapshotID string, milestoneType models.MilestoneType, data *models.TaggedValue) error
}

type ArchiveRestorer interface {
	Restore(ctx context.Context, archiveID string, dryRun bool) (archive.RestoreResult, error)
}

type ArchiveLinks interface {
	URL(ctx context.Context, archiveID string) (string, error)
}

// Services are what the operator methods call into.
type Services struct {
	Job        JobRunner
	Milestones MilestoneService
	Restorer   ArchiveRestorer
	Links      ArchiveLinks
	Tx         dbx.Transactor
	Repos      repomanager.RepositoryManager
	Monitor    *monitor.JobMonitor
}

type Server struct {
	address string
	token   []byte
	svc     Services
	logger  logging.Logger

	now func() time.Time
}

// NewServer returns a server for address. An empty token disables the
// operator token check.
func NewServer(address, token string, svc Services, l logging.Logger) *Server {
	return &Server{
		address: address,
		token:   []byte(token),
		svc:     svc,
		logger:  l.With("module", "grpc_server"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.operatorTokenInterceptor))
	RegisterOperatorServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
