// Package grpcapi exposes stateless scoring over gRPC next to the standard
// health and reflection services.
package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"pronunciation-practice-service/internal/app"
	"pronunciation-practice-service/internal/catalog"
	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability"
	"pronunciation-practice-service/internal/schema"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pronunciation.v1.Scoring"

// ListSentencesRequest is empty; it exists so the method has a request type.
type ListSentencesRequest struct{}

// ListSentencesResponse carries the practice catalog.
type ListSentencesResponse struct {
	Sentences []catalog.Sentence `json:"sentences"`
}

// ScoringServer is the server API for the scoring service.
type ScoringServer interface {
	Score(context.Context, *models.ScoreRequest) (*models.ScoreResponse, error)
	ListSentences(context.Context, *ListSentencesRequest) (*ListSentencesResponse, error)
}

// Server implements ScoringServer on top of the application.
type Server struct {
	app *app.Application
}

// Register adds the scoring service to g.
func Register(g *grpc.Server, application *app.Application) {
	g.RegisterService(&serviceDesc, &Server{app: application})
}

// NewServer builds a gRPC server with interceptors, health, reflection and
// the scoring service registered. The health server is returned so callers
// can flip serving status on shutdown.
func NewServer(application *app.Application) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(application.Metrics)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(application.Metrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	Register(server, application)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	return server, healthServer
}

// Score aligns a hypothesis against its reference.
func (s *Server) Score(ctx context.Context, req *models.ScoreRequest) (*models.ScoreResponse, error) {
	resp, err := s.app.Score(*req)
	if err != nil {
		if errors.Is(err, schema.ErrMalformed) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &resp, nil
}

// ListSentences returns the practice catalog.
func (s *Server) ListSentences(ctx context.Context, _ *ListSentencesRequest) (*ListSentencesResponse, error) {
	return &ListSentencesResponse{Sentences: s.app.Catalog.All()}, nil
}

func scoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.ScoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScoringServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/Score",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScoringServer).Score(ctx, req.(*models.ScoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listSentencesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListSentencesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScoringServer).ListSentences(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/ListSentences",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScoringServer).ListSentences(ctx, req.(*ListSentencesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScoringServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreHandler},
		{MethodName: "ListSentences", Handler: listSentencesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pronunciation/v1/scoring",
}
