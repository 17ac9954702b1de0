// Package server exposes sessions over gRPC. The service is described by the
// embedded loopviz.proto and served with dynamic messages, so no generated
// code is involved.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/logging"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/funvibe/loopviz/internal/session"
	"github.com/funvibe/loopviz/internal/wire"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type handlerFunc func(s *Server, ctx context.Context, in, out *dynamic.Message) error

var handlers = map[string]handlerFunc{
	"ListScenarios": (*Server).listScenarios,
	"Open":          (*Server).open,
	"Step":          (*Server).step,
	"Reset":         (*Server).reset,
	"State":         (*Server).state,
	"Close":         (*Server).close,
}

// Server serves EngineService for a scenario catalog and a session store.
type Server struct {
	catalog  *scenario.Catalog
	sessions *session.Store
	grpc     *grpc.Server
	log      commonlog.Logger
}

// New creates a server with the service registered.
func New(catalog *scenario.Catalog, sessions *session.Store, opts ...grpc.ServerOption) (*Server, error) {
	s := &Server{
		catalog:  catalog,
		sessions: sessions,
		log:      logging.Get("server"),
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.logCall)}, opts...)
	s.grpc = grpc.NewServer(opts...)
	if err := s.register(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) register() error {
	sd, err := service()
	if err != nil {
		return err
	}

	gdesc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Methods:     []grpc.MethodDesc{},
		Streams:     []grpc.StreamDesc{},
		Metadata:    protoFile,
	}
	for _, md := range sd.GetMethods() {
		h, ok := handlers[md.GetName()]
		if !ok {
			return fmt.Errorf("no handler for %s", fullMethod(md.GetName()))
		}
		gdesc.Methods = append(gdesc.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler:    unary(md, h),
		})
	}
	s.grpc.RegisterService(gdesc, s)
	return nil
}

func unary(md *desc.MethodDescriptor, h handlerFunc) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := dynamic.NewMessage(md.GetInputType())
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			out := dynamic.NewMessage(md.GetOutputType())
			if err := h(srv.(*Server), ctx, req.(*dynamic.Message), out); err != nil {
				return nil, err
			}
			return out, nil
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(md.GetName())}
		return interceptor(ctx, in, info, call)
	}
}

func (s *Server) logCall(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.log.Infof("%s failed after %s: %s", info.FullMethod, time.Since(start), err)
	} else {
		s.log.Debugf("%s took %s", info.FullMethod, time.Since(start))
	}
	return resp, err
}

// GRPC returns the underlying grpc.Server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Serve accepts connections on lis until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.grpc.GracefulStop()
		case <-stopped:
		}
	}()

	s.log.Noticef("serving %s on %s", ServiceName, lis.Addr())
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on the TCP address addr and serves.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Stop closes all connections and pauses every session.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
	for _, sess := range s.sessions.List() {
		sess.Pause()
	}
}

func (s *Server) listScenarios(_ context.Context, _, out *dynamic.Message) error {
	md := out.GetMessageDescriptor().FindFieldByName("scenarios").GetMessageType()
	for _, sc := range s.catalog.List() {
		item := dynamic.NewMessage(md)
		item.SetFieldByName("id", sc.ID)
		item.SetFieldByName("name", sc.Name)
		item.SetFieldByName("description", sc.Description)
		item.SetFieldByName("code", sc.Code)
		if err := out.TryAddRepeatedFieldByName("scenarios", item); err != nil {
			return status.Error(codes.Internal, err.Error())
		}
	}
	return nil
}

func (s *Server) open(_ context.Context, in, out *dynamic.Message) error {
	id := stringField(in, "scenario_id")
	if id == "" {
		return status.Error(codes.InvalidArgument, "scenario_id is required")
	}
	sc, ok := s.catalog.Get(id)
	if !ok {
		return status.Errorf(codes.NotFound, "unknown scenario %q", id)
	}
	sess := s.sessions.Create(sc)
	s.log.Infof("session %s opened on %s", sess.ID, sc.ID)
	return fillState(out, sess, sess.State())
}

func (s *Server) lookup(in *dynamic.Message) (*session.Session, error) {
	id := stringField(in, "session_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown session %q", id)
	}
	return sess, nil
}

func (s *Server) step(_ context.Context, in, out *dynamic.Message) error {
	sess, err := s.lookup(in)
	if err != nil {
		return err
	}
	return fillState(out, sess, sess.Step())
}

func (s *Server) reset(_ context.Context, in, out *dynamic.Message) error {
	sess, err := s.lookup(in)
	if err != nil {
		return err
	}
	return fillState(out, sess, sess.Reset())
}

func (s *Server) state(_ context.Context, in, out *dynamic.Message) error {
	sess, err := s.lookup(in)
	if err != nil {
		return err
	}
	return fillState(out, sess, sess.State())
}

func (s *Server) close(_ context.Context, in, out *dynamic.Message) error {
	id := stringField(in, "session_id")
	if id == "" {
		return status.Error(codes.InvalidArgument, "session_id is required")
	}
	closed := s.sessions.Destroy(id)
	if closed {
		s.log.Infof("session %s closed", id)
	}
	out.SetFieldByName("closed", closed)
	return nil
}

func fillState(out *dynamic.Message, sess *session.Session, st engine.State) error {
	data, err := wire.Encode(wire.CBOR, st)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	out.SetFieldByName("session_id", sess.ID)
	out.SetFieldByName("scenario_id", sess.Scenario().ID)
	out.SetFieldByName("state", data)
	return nil
}
