// Package grpc serves the operator API over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON documents the HTTP API
// returns, so the service needs no generated code.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "skillbound.retention.v1.Operator"

// Method names of the operator service.
const (
	MethodRun          = "Run"
	MethodMark         = "MarkMilestone"
	MethodDetect       = "DetectMilestones"
	MethodRestore      = "RestoreArchive"
	MethodURL          = "ArchiveURL"
	MethodListArchives = "ListArchives"
	MethodTierStats    = "TierStats"
	MethodHealth       = "Health"
)

// OperatorServer is implemented by Server.
type OperatorServer interface {
	RunJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkMilestone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DetectMilestones(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RestoreArchive(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ArchiveURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListArchives(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TierStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(OperatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OperatorServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OperatorServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// OperatorServiceDesc describes the operator service for grpc.Server.
var OperatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OperatorServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc(MethodRun, OperatorServer.RunJob),
		methodDesc(MethodMark, OperatorServer.MarkMilestone),
		methodDesc(MethodDetect, OperatorServer.DetectMilestones),
		methodDesc(MethodRestore, OperatorServer.RestoreArchive),
		methodDesc(MethodURL, OperatorServer.ArchiveURL),
		methodDesc(MethodListArchives, OperatorServer.ListArchives),
		methodDesc(MethodTierStats, OperatorServer.TierStats),
		methodDesc(MethodHealth, OperatorServer.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "skillbound/retention/v1/operator",
}

// RegisterOperatorServer registers srv on s.
func RegisterOperatorServer(s grpc.ServiceRegistrar, srv OperatorServer) {
	s.RegisterService(&OperatorServiceDesc, srv)
}

// FullMethod returns the path gRPC routes name under.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// listBody wraps array results, since a Struct is always an object.
type listBody[T any] struct {
	Items []T `json:"items"`
}

// encode converts v to a Struct through its JSON form.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// decode fills v from the JSON form of s. A nil Struct leaves v untouched.
func decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
