package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
)

// accessTokenInterceptor turns the access_token metadata into a session.
// Calls without a token run anonymously; a token that fails to parse is
// rejected so the client knows to refresh it.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}

	if accessToken != "" {
		sess, err := auth.ParseToken(accessToken, s.jwtSecret)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
			}
			return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
		}
		ctx = auth.WithSession(ctx, sess)
	}

	return handler(ctx, req)
}
