package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
)

const (
	ExtractionServiceName = "envelopeocr.v1.ExtractionService"
	extractionProtoFile   = "envelopeocr/v1/extraction.proto"
)

// ExtractionServiceServer is the unary Extract RPC. Messages are
// google.protobuf.Struct so no generated code is needed.
type ExtractionServiceServer interface {
	Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServiceServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ExtractionServiceName + "/Extract",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServiceServer).Extract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: extractionProtoFile,
}

// registerDescriptor publishes the service descriptor so grpcurl can describe
// it through reflection.
func registerDescriptor() error {
	if _, err := protoregistry.GlobalFiles.FindFileByPath(extractionProtoFile); err == nil {
		return nil
	}
	structType := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())
	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(extractionProtoFile),
		Package:    proto.String("envelopeocr.v1"),
		Dependency: []string{"google/protobuf/struct.proto"},
		Syntax:     proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("ExtractionService"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       proto.String("Extract"),
				InputType:  proto.String(structType),
				OutputType: proto.String(structType),
			}},
		}},
	}
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return fmt.Errorf("build descriptor: %w", err)
	}
	return protoregistry.GlobalFiles.RegisterFile(fd)
}

// ExtractionServer adapts a Handler to the gRPC surface.
type ExtractionServer struct {
	h      Handler
	logger *slog.Logger
}

func NewExtractionServer(h Handler, logger *slog.Logger) *ExtractionServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionServer{h: h, logger: logger}
}

// Extract takes {filename, content_type, body (base64)} and returns
// {status_code, message, report_key}. Handled outcomes are OK at the gRPC
// level; only malformed requests are InvalidArgument.
func (s *ExtractionServer) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	body, ok := fields["body"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, common.InvalidArgumentError("body must be a base64 string")
	}
	str := func(name string) string { return fields[name].GetStringValue() }

	ctx, _ = common.EnsureRequestID(ctx)
	res := s.h.Process(ctx, InvocationFromHeaders(map[string]string{
		"filename":     str("filename"),
		"Content-Type": str("content_type"),
	}, []byte(body.StringValue), true, "grpc"))

	out, err := structpb.NewStruct(map[string]any{
		"status_code": res.StatusCode,
		"message":     res.Message,
		"report_key":  res.ReportKey,
		"rows":        res.Rows,
	})
	if err != nil {
		s.logger.Error("extract response encoding failed", "error", err)
		return nil, common.InternalError("encode response")
	}
	return out, nil
}

// MaxRecvMsgSize is the receive limit for a given body bound. It leaves room
// for bodies past maxBody so those are answered with 413 by the processor
// rather than ResourceExhausted by the transport.
func MaxRecvMsgSize(maxBody int64) int {
	if maxBody <= 0 {
		maxBody = common.DefaultMaxBodyBytes
	}
	n := maxBody*2 + (1 << 16)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// NewGRPCServer registers the extraction, health and reflection services.
// opts are applied after the receive limit derived from maxBody.
func NewGRPCServer(h Handler, maxBody int64, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server, error) {
	if err := registerDescriptor(); err != nil {
		return nil, nil, err
	}
	opts = append([]grpc.ServerOption{grpc.MaxRecvMsgSize(MaxRecvMsgSize(maxBody))}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ExtractionServiceDesc, NewExtractionServer(h, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ExtractionServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(gs)
	return gs, hs, nil
}
