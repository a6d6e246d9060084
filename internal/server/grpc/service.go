package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
)

const serviceName = "securenotes.v1.NoteAccess"

const (
	methodLoadNoteView   = "/" + serviceName + "/LoadNoteView"
	methodOpenAttachment = "/" + serviceName + "/OpenAttachment"
)

type LoadNoteViewRequest struct {
	NoteID string `json:"note_id"`
}

type LoadNoteViewResponse struct {
	View *viewer.NoteView `json:"view"`
	// Dropped lists attachments left out of View because they could not
	// be signed.
	Dropped []string `json:"dropped,omitempty"`
}

type OpenAttachmentRequest struct {
	NoteID       string    `json:"note_id"`
	AttachmentID string    `json:"attachment_id"`
	URL          string    `json:"url"`
	SignedAt     time.Time `json:"signed_at"`
}

type OpenAttachmentResponse struct {
	URL       string    `json:"url"`
	SignedAt  time.Time `json:"signed_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NoteAccessServer is the server side of securenotes.v1.NoteAccess.
type NoteAccessServer interface {
	LoadNoteView(context.Context, *LoadNoteViewRequest) (*LoadNoteViewResponse, error)
	OpenAttachment(context.Context, *OpenAttachmentRequest) (*OpenAttachmentResponse, error)
}

func loadNoteViewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoadNoteViewRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NoteAccessServer).LoadNoteView(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLoadNoteView}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(NoteAccessServer).LoadNoteView(ctx, req.(*LoadNoteViewRequest))
	})
}

func openAttachmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OpenAttachmentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NoteAccessServer).OpenAttachment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodOpenAttachment}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(NoteAccessServer).OpenAttachment(ctx, req.(*OpenAttachmentRequest))
	})
}

var noteAccessDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NoteAccessServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadNoteView", Handler: loadNoteViewHandler},
		{MethodName: "OpenAttachment", Handler: openAttachmentHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterNoteAccessServer attaches srv to s.
func RegisterNoteAccessServer(s grpc.ServiceRegistrar, srv NoteAccessServer) {
	s.RegisterService(&noteAccessDesc, srv)
}

// Client calls securenotes.v1.NoteAccess. The access token, if any, travels
// in the common.AccessTokenHeaderName metadata key.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) LoadNoteView(ctx context.Context, in *LoadNoteViewRequest, opts ...grpc.CallOption) (*LoadNoteViewResponse, error) {
	out := new(LoadNoteViewResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, methodLoadNoteView, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) OpenAttachment(ctx context.Context, in *OpenAttachmentRequest, opts ...grpc.CallOption) (*OpenAttachmentResponse, error) {
	out := new(OpenAttachmentResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, methodOpenAttachment, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
