package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/campusjobs/jobboard-auth/app/entity"
	"github.com/campusjobs/jobboard-auth/app/service"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type callerServiceKey struct{}

// CallerService returns the name of the service whose key authorized the call.
func CallerService(ctx context.Context) string {
	name, _ := ctx.Value(callerServiceKey{}).(string)
	return name
}

func APIKeyUnaryInterceptor(keys service.ServiceKeyService) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		key, err := validateIncomingAPIKey(ctx, keys)
		if err != nil {
			return nil, err
		}

		return handler(context.WithValue(ctx, callerServiceKey{}, key.ServiceName), req)
	}
}

func APIKeyStreamInterceptor(keys service.ServiceKeyService) gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, _ *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		key, err := validateIncomingAPIKey(ss.Context(), keys)
		if err != nil {
			return err
		}

		ctx := context.WithValue(ss.Context(), callerServiceKey{}, key.ServiceName)
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func validateIncomingAPIKey(ctx context.Context, keys service.ServiceKeyService) (*entity.ServiceKey, error) {
	rawKey := incomingAPIKeyFromMetadata(ctx)
	if rawKey == "" {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	key, err := keys.Validate(ctx, rawKey)
	if err != nil {
		if errors.Is(err, service.ErrInvalidServiceKey) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		logrus.WithError(err).Error("Service key validation failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return key, nil
}

func incomingAPIKeyFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

type wrappedServerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
