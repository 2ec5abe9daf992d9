// Package rpc exposes the bridge operations as a gRPC service so the CLI can
// talk to a running daemon.
package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/snapshot"
)

const ServiceName = "chatdesk.Bridge"

type SnapshotMessage struct {
	SerializedModel snapshot.Snapshot `json:"serialized_model"`
}

type ProcessMessageRequest struct {
	Message         string            `json:"message"`
	SerializedModel snapshot.Snapshot `json:"serialized_model"`
}

type ChangeSystemMessageRequest struct {
	SystemMessage   string            `json:"sys_msg"`
	SerializedModel snapshot.Snapshot `json:"serialized_model"`
}

type StatusRequest struct{}

type StatusReply struct {
	Bind          string `json:"bind"`
	HTTPBind      string `json:"http_bind"`
	Endpoint      string `json:"endpoint"`
	DataDir       string `json:"data_dir"`
	DefaultModel  string `json:"default_model"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	StartedAt     string `json:"started_at"`
}

type ShutdownRequest struct{}

type ShutdownReply struct {
	Message string `json:"message"`
}

// Server is implemented by Handler; tests may substitute their own.
type Server interface {
	SetupModel(context.Context, *bridge.SetupRequest) (*SnapshotMessage, error)
	ProcessMessage(context.Context, *ProcessMessageRequest) (*bridge.MessageResult, error)
	GetInfo(context.Context, *SnapshotMessage) (*bridge.InfoResult, error)
	RefreshSession(context.Context, *SnapshotMessage) (*bridge.SessionResult, error)
	ChangeSystemMessage(context.Context, *ChangeSystemMessageRequest) (*bridge.SystemMessageResult, error)
	GetStatus(context.Context, *StatusRequest) (*StatusReply, error)
	Shutdown(context.Context, *ShutdownRequest) (*ShutdownReply, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary("SetupModel", Server.SetupModel),
		unary("ProcessMessage", Server.ProcessMessage),
		unary("GetInfo", Server.GetInfo),
		unary("RefreshSession", Server.RefreshSession),
		unary("ChangeSystemMessage", Server.ChangeSystemMessage),
		unary("GetStatus", Server.GetStatus),
		unary("Shutdown", Server.Shutdown),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chatdesk/bridge",
}

// Register attaches srv to s under ServiceName.
func Register(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}
