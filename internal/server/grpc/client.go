package grpc

import (
	"context"
	"fmt"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/berniemackie97/skillbound-sub002/internal/server/archive"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote operator service.
type Client struct {
	conn  *grpc.ClientConn
	token string
}

// Dial connects to address without TLS. opts are appended to the defaults.
func Dial(address, token string, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{token: token}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.operatorTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	c.conn = conn
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) operatorTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, TokenHeader, c.token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	req, err := encode(in)
	if err != nil {
		return err
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, FullMethod(method), req, resp); err != nil {
		return fromStatus(err)
	}
	if out == nil {
		return nil
	}
	return decode(resp, out)
}

// fromStatus turns a status back into the service error it was mapped from,
// so callers can keep using errors.Is.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var base error
	switch st.Code() {
	case codes.NotFound:
		base = common.ErrorNotFound
	case codes.InvalidArgument:
		base = common.ErrorInvalidInput
	case codes.FailedPrecondition:
		base = common.ErrMalformedArchive
	case codes.Unavailable:
		base = common.ErrorArchiveConfig
	case codes.Unimplemented:
		base = objectstore.ErrURLUnsupported
	case codes.Internal:
		return common.ErrorInternal
	default:
		return err
	}
	return fmt.Errorf("%w: %s", base, st.Message())
}

func (c *Client) Run(ctx context.Context, opts retention.Options) (*retention.Summary, error) {
	var sum retention.Summary
	if err := c.call(ctx, MethodRun, opts, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (c *Client) Mark(ctx context.Context, snapshotID string, t models.MilestoneType, data *models.TaggedValue) error {
	return c.call(ctx, MethodMark, MarkRequest{SnapshotID: snapshotID, Type: t, Data: data}, nil)
}

func (c *Client) DetectForSnapshot(ctx context.Context, snapshotID string) ([]models.Milestone, error) {
	var out listBody[models.Milestone]
	if err := c.call(ctx, MethodDetect, SnapshotRequest{SnapshotID: snapshotID}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Restore(ctx context.Context, archiveID string, dryRun bool) (archive.RestoreResult, error) {
	var res archive.RestoreResult
	err := c.call(ctx, MethodRestore, ArchiveRequest{ArchiveID: archiveID, DryRun: dryRun}, &res)
	return res, err
}

func (c *Client) URL(ctx context.Context, archiveID string) (string, error) {
	var out URLResponse
	if err := c.call(ctx, MethodURL, ArchiveRequest{ArchiveID: archiveID}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) ListArchives(ctx context.Context, characterID string, limit int) ([]*models.ArchiveRecord, error) {
	var out listBody[*models.ArchiveRecord]
	if err := c.call(ctx, MethodListArchives, CharacterRequest{CharacterID: characterID, Limit: limit}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) TierStats(ctx context.Context, characterID string) ([]models.TierStat, error) {
	var out listBody[models.TierStat]
	if err := c.call(ctx, MethodTierStats, CharacterRequest{CharacterID: characterID}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.call(ctx, MethodHealth, struct{}{}, &out)
	return out, err
}
