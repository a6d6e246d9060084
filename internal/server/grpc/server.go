package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
)

// NoteViewer is the orchestrator behind the RPCs.
type NoteViewer interface {
	LoadNoteView(ctx context.Context, noteID string, sess *auth.Session) (*viewer.NoteView, error)
	OpenAttachment(ctx context.Context, noteID string, att *viewer.SignedAttachment, sess *auth.Session) (string, error)
	SignedURLTTL() time.Duration
}

type GRPCServer struct {
	address   string
	viewer    NoteViewer
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, v NoteViewer, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		viewer:    v,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	RegisterNoteAccessServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
