package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/campusjobs/jobboard-auth/app/service"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	SessionServiceName         = "jobboard.auth.v1.SessionService"
	AuthenticateFullMethodName = "/" + SessionServiceName + "/Authenticate"
)

// SessionServiceServer resolves a session token to the principal it was
// issued for. Messages are protobuf well-known types so callers need no
// generated stubs.
type SessionServiceServer interface {
	Authenticate(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
}

var SessionServiceDesc = gogrpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "Authenticate",
			Handler:    authenticateHandler,
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "jobboard/auth/v1/session.proto",
}

func RegisterSessionServiceServer(registrar gogrpc.ServiceRegistrar, srv SessionServiceServer) {
	registrar.RegisterService(&SessionServiceDesc, srv)
}

func authenticateHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).Authenticate(ctx, in)
	}

	info := &gogrpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AuthenticateFullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).Authenticate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

type SessionServiceClient interface {
	Authenticate(ctx context.Context, token *wrapperspb.StringValue, opts ...gogrpc.CallOption) (*structpb.Struct, error)
}

type sessionServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewSessionServiceClient(cc gogrpc.ClientConnInterface) SessionServiceClient {
	return &sessionServiceClient{cc: cc}
}

func (c *sessionServiceClient) Authenticate(ctx context.Context, token *wrapperspb.StringValue, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AuthenticateFullMethodName, token, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type sessionAuthenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*service.Claims, error)
}

type SessionServer struct {
	sessions sessionAuthenticator
}

func NewSessionServer(sessions sessionAuthenticator) *SessionServer {
	return &SessionServer{sessions: sessions}
}

func (s *SessionServer) Authenticate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(req.GetValue())
	if token == "" {
		logrus.Debug("Authenticate validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	caller := CallerService(ctx)
	claims, err := s.sessions.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, service.ErrSessionInvalid) ||
			errors.Is(err, service.ErrSessionExpired) ||
			errors.Is(err, service.ErrSessionRevoked) {
			logrus.WithError(err).WithField("caller", caller).Debug("Authenticate rejected token (grpc)")
			return invalidSession(), nil
		}
		logrus.WithError(err).WithField("caller", caller).Error("Authenticate failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	logrus.WithFields(logrus.Fields{
		"caller":  caller,
		"user_id": claims.ID,
		"role":    claims.Role,
	}).Debug("Authenticate succeeded (grpc)")

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"valid": structpb.NewBoolValue(true),
		"id":    structpb.NewNumberValue(float64(claims.ID)),
		"role":  structpb.NewStringValue(string(claims.Role)),
	}}, nil
}

func invalidSession() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"valid": structpb.NewBoolValue(false),
	}}
}
