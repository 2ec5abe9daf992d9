package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/session"
	"github.com/erg0nix/chatdesk/internal/snapshot"
)

type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a daemon on addr. The connection is established lazily on
// the first call.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	var trailer metadata.MD
	err := c.conn.Invoke(ctx, fullMethod(method), in, out, grpc.Trailer(&trailer))
	if err != nil {
		return fromStatus(method, err, trailer)
	}
	return nil
}

// fromStatus turns a failed call back into a *session.Error when the server
// reported a kind, so callers can keep using the session predicates.
func fromStatus(method string, err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc %s: %w", method, err)
	}

	if values := trailer.Get(kindTrailer); len(values) > 0 {
		if kind, ok := session.ParseKind(values[0]); ok {
			return session.NewError(kind, "%s", st.Message())
		}
	}

	return fmt.Errorf("rpc %s: %w", method, err)
}

func (c *Client) SetupModel(ctx context.Context, req bridge.SetupRequest) (snapshot.Snapshot, error) {
	var out SnapshotMessage
	if err := c.invoke(ctx, "SetupModel", &req, &out); err != nil {
		return snapshot.Snapshot{}, err
	}
	return out.SerializedModel, nil
}

func (c *Client) ProcessMessage(ctx context.Context, message string, snap snapshot.Snapshot) (bridge.MessageResult, error) {
	var out bridge.MessageResult
	err := c.invoke(ctx, "ProcessMessage", &ProcessMessageRequest{Message: message, SerializedModel: snap}, &out)
	return out, err
}

func (c *Client) GetInfo(ctx context.Context, snap snapshot.Snapshot) (bridge.InfoResult, error) {
	var out bridge.InfoResult
	err := c.invoke(ctx, "GetInfo", &SnapshotMessage{SerializedModel: snap}, &out)
	return out, err
}

func (c *Client) RefreshSession(ctx context.Context, snap snapshot.Snapshot) (bridge.SessionResult, error) {
	var out bridge.SessionResult
	err := c.invoke(ctx, "RefreshSession", &SnapshotMessage{SerializedModel: snap}, &out)
	return out, err
}

func (c *Client) ChangeSystemMessage(ctx context.Context, text string, snap snapshot.Snapshot) (bridge.SystemMessageResult, error) {
	var out bridge.SystemMessageResult
	err := c.invoke(ctx, "ChangeSystemMessage", &ChangeSystemMessageRequest{SystemMessage: text, SerializedModel: snap}, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context) (StatusReply, error) {
	var out StatusReply
	err := c.invoke(ctx, "GetStatus", &StatusRequest{}, &out)
	return out, err
}

func (c *Client) Shutdown(ctx context.Context) (string, error) {
	var out ShutdownReply
	if err := c.invoke(ctx, "Shutdown", &ShutdownRequest{}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
