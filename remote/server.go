package remote

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"mcheck/driver"
)

// Converts the snapshots of a driver to and from their wire content
type SnapshotCodec interface {
	EncodeSnapshot(driver.Snapshot) (*structpb.Struct, error)
	DecodeSnapshot(*structpb.Struct) (driver.Snapshot, error)
}

// Serves a driver to a remote explorer.
//
// The explorer never issues concurrent calls, the server does not serialize them.
type Server struct {
	drv   driver.Driver
	codec SnapshotCodec
	log   logrus.FieldLogger
}

func NewServer(drv driver.Driver, codec SnapshotCodec, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{drv: drv, codec: codec, log: log.WithField("component", "remote")}
}

// A grpc server with the driver service registered
func (s *Server) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.logInterceptor),
	}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterDriverServer(gs, s)
	return gs
}

// Serve the driver on the listener until ctx is cancelled or the listener fails
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := s.GRPCServer()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			gs.GracefulStop()
		case <-done:
		}
	}()
	s.log.WithField("addr", lis.Addr().String()).Info("Serving driver")
	if err := gs.Serve(lis); err != nil {
		return errors.Wrap(err, "remote: serve")
	}
	return nil
}

func (s *Server) InitialActors(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	actors, err := s.drv.InitialActors(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"actors": encodeActors(actors)}}, nil
}

func (s *Server) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	aid, times, err := decodeExecRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.drv.Execute(ctx, aid, times)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeExecResult(res), nil
}

func (s *Server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.drv.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	content, err := s.codec.EncodeSnapshot(snap)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"actor_count": structpb.NewNumberValue(float64(snap.ActorCount())),
		"content":     structpb.NewStructValue(content),
	}}, nil
}

func (s *Server) Restore(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	content := req.GetFields()["content"].GetStructValue()
	if content == nil {
		return nil, status.Error(codes.InvalidArgument, "remote: restore request without content")
	}
	snap, err := s.codec.DecodeSnapshot(content)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.drv.Restore(ctx, snap); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := s.log.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"code":     status.Code(err).String(),
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Warn("Driver call failed")
	} else {
		entry.Trace("Driver call")
	}
	return resp, err
}

func toStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}
