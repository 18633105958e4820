// Package rpc serves the memory operations over gRPC and provides a
// memory.Store client for them.
//
// Requests and responses are google.protobuf.Struct messages carrying the
// same fields as the HTTP bodies, so no generated code is needed.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/becomeliminal/nim-memory/api"
	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
)

const ServiceName = "nim.memory.v1.MemoryService"

// StoreSource hands out the process's memory store.
type StoreSource interface {
	Get() (memory.Store, error)
}

type memoryServiceServer interface {
	Store(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*memoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Store", Handler: unaryHandler("Store", memoryServiceServer.Store)},
		{MethodName: "Search", Handler: unaryHandler("Search", memoryServiceServer.Search)},
		{MethodName: "List", Handler: unaryHandler("List", memoryServiceServer.List)},
		{MethodName: "Delete", Handler: unaryHandler("Delete", memoryServiceServer.Delete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nim/memory/v1/memory.proto",
}

func unaryHandler(method string, call func(memoryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(memoryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(memoryServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// Server implements the memory service on top of a StoreSource.
type Server struct {
	stores StoreSource
	log    *slog.Logger
}

func NewServer(stores StoreSource, logger *slog.Logger) *Server {
	return &Server{
		stores: stores,
		log:    logging.OrDiscard(logger).With("component", "rpc"),
	}
}

// Register adds the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Serve runs a gRPC server on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	s.Register(gs)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("grpc listening", "addr", ln.Addr().String())
		errc <- gs.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		gs.GracefulStop()
		<-errc
		return nil
	}
}

func (s *Server) Store(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, api.OpStore, in)
}

func (s *Server) Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, api.OpSearch, in)
}

func (s *Server) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, api.OpList, in)
}

func (s *Server) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, api.OpDelete, in)
}

func (s *Server) call(ctx context.Context, op string, in *structpb.Struct) (*structpb.Struct, error) {
	store, err := s.stores.Get()
	if err != nil {
		return nil, statusFor(err)
	}

	payload, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}

	result, err := api.Dispatch(ctx, store, op, payload)
	if err != nil {
		return nil, statusFor(err)
	}

	out, err := toStruct(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)

	attrs := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	switch code {
	case codes.OK:
		s.log.Debug("rpc", attrs...)
	case codes.InvalidArgument:
		s.log.Warn("rpc rejected", append(attrs, "error", err)...)
	default:
		s.log.Error("rpc failed", append(attrs, "error", err)...)
	}
	return resp, err
}

// statusFor maps an operation error to a gRPC status.
func statusFor(err error) error {
	switch {
	case errors.Is(err, memory.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, memory.ErrConfiguration):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
