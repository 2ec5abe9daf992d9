package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/config"
	"github.com/erg0nix/chatdesk/internal/core"
	"github.com/erg0nix/chatdesk/internal/session"
)

// kindTrailer carries the session error kind next to the gRPC status.
const kindTrailer = "chatdesk-error-kind"

type Handler struct {
	Bridge    *bridge.Service
	Config    config.Config
	StartTime time.Time
	StopFunc  func()
}

func (h *Handler) SetupModel(ctx context.Context, req *bridge.SetupRequest) (*SnapshotMessage, error) {
	snap, err := h.Bridge.SetupModel(*req)
	if err != nil {
		return nil, statusError(ctx, err, bridge.SetupFailure(err))
	}
	return &SnapshotMessage{SerializedModel: snap}, nil
}

func (h *Handler) ProcessMessage(ctx context.Context, req *ProcessMessageRequest) (*bridge.MessageResult, error) {
	result, err := h.Bridge.ProcessMessage(ctx, req.Message, req.SerializedModel)
	if err != nil {
		return nil, statusError(ctx, err, bridge.FailureFrom(err))
	}
	return &result, nil
}

func (h *Handler) GetInfo(ctx context.Context, req *SnapshotMessage) (*bridge.InfoResult, error) {
	result, err := h.Bridge.GetInfo(req.SerializedModel)
	if err != nil {
		return nil, statusError(ctx, err, bridge.FailureFrom(err))
	}
	return &result, nil
}

func (h *Handler) RefreshSession(ctx context.Context, req *SnapshotMessage) (*bridge.SessionResult, error) {
	result, err := h.Bridge.RefreshSession(req.SerializedModel)
	if err != nil {
		return nil, statusError(ctx, err, bridge.FailureFrom(err))
	}
	return &result, nil
}

func (h *Handler) ChangeSystemMessage(ctx context.Context, req *ChangeSystemMessageRequest) (*bridge.SystemMessageResult, error) {
	result, err := h.Bridge.ChangeSystemMessage(req.SystemMessage, req.SerializedModel)
	if err != nil {
		return nil, statusError(ctx, err, bridge.FailureFrom(err))
	}
	return &result, nil
}

func (h *Handler) GetStatus(ctx context.Context, _ *StatusRequest) (*StatusReply, error) {
	uptimeSeconds := int64(0)
	startedAtText := ""
	if !h.StartTime.IsZero() {
		uptimeSeconds = int64(time.Since(h.StartTime).Seconds())
		startedAtText = h.StartTime.Format(time.RFC3339)
	}

	return &StatusReply{
		Bind:          h.Config.Bind,
		HTTPBind:      h.Config.HTTPBind,
		Endpoint:      h.Config.OpenAI.Endpoint,
		DataDir:       h.Config.DataDir,
		DefaultModel:  h.Config.Model.Version,
		UptimeSeconds: uptimeSeconds,
		StartedAt:     startedAtText,
	}, nil
}

func (h *Handler) Shutdown(ctx context.Context, _ *ShutdownRequest) (*ShutdownReply, error) {
	if h.StopFunc != nil {
		go h.StopFunc()
	}

	return &ShutdownReply{Message: "shutting down"}, nil
}

func statusError(ctx context.Context, err error, failure bridge.Failure) error {
	_ = grpc.SetTrailer(ctx, metadata.Pairs(kindTrailer, failure.Kind))
	return status.Error(codeFor(err), failure.Message)
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}

	switch session.KindOf(err) {
	case session.KindConfiguration, session.KindDeserialization, session.KindUnsupportedModel:
		return codes.InvalidArgument
	case session.KindContextExceeded:
		return codes.ResourceExhausted
	case session.KindRequest:
		return codes.Unavailable
	case session.KindResponseParse, session.KindUnknownFinishReason:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// LoggingInterceptor logs one line per call, tagged with a fresh request id.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		logger.Info("rpc",
			"request_id", core.NewRequestID(),
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}

// NewServer builds a gRPC server with the bridge service registered.
func NewServer(srv Server, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor(logger))}, opts...)
	s := grpc.NewServer(opts...)
	Register(s, srv)
	return s
}
