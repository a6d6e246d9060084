package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
)

func (s *GRPCServer) LoadNoteView(ctx context.Context, req *LoadNoteViewRequest) (*LoadNoteViewResponse, error) {
	view, err := s.viewer.LoadNoteView(ctx, req.NoteID, auth.FromContext(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := &LoadNoteViewResponse{View: view}
	if view.Partial != nil {
		resp.Dropped = view.Partial.Dropped
	}
	return resp, nil
}

func (s *GRPCServer) OpenAttachment(ctx context.Context, req *OpenAttachmentRequest) (*OpenAttachmentResponse, error) {
	att := &viewer.SignedAttachment{
		ID:       req.AttachmentID,
		NoteID:   req.NoteID,
		URL:      req.URL,
		SignedAt: req.SignedAt,
	}
	url, err := s.viewer.OpenAttachment(ctx, req.NoteID, att, auth.FromContext(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &OpenAttachmentResponse{
		URL:       url,
		SignedAt:  att.SignedAt,
		ExpiresAt: att.SignedAt.Add(s.viewer.SignedURLTTL()),
	}, nil
}

// toStatus maps orchestrator errors to status codes. Internal errors are
// logged and reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, viewer.ErrNotFoundOrForbidden):
		return status.Error(codes.NotFound, viewer.ErrNotFoundOrForbidden.Error())
	case errors.Is(err, viewer.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, viewer.ErrInvalidRequest.Error())
	case errors.Is(err, viewer.ErrTransientNetwork):
		return status.Error(codes.Unavailable, viewer.ErrTransientNetwork.Error())
	case errors.Is(err, viewer.ErrAttachmentUnavailable):
		return status.Error(codes.Unavailable, viewer.ErrAttachmentUnavailable.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	s.logger.Error(ctx, "rpc failed", "error", err)
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}
