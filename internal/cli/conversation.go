package cli

import (
	"context"
	"errors"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/snapshot"
)

// bridgeClient is satisfied by the daemon's rpc.Client and by localClient,
// so the same conversation code runs with or without a daemon.
type bridgeClient interface {
	SetupModel(ctx context.Context, req bridge.SetupRequest) (snapshot.Snapshot, error)
	ProcessMessage(ctx context.Context, message string, snap snapshot.Snapshot) (bridge.MessageResult, error)
	GetInfo(ctx context.Context, snap snapshot.Snapshot) (bridge.InfoResult, error)
	RefreshSession(ctx context.Context, snap snapshot.Snapshot) (bridge.SessionResult, error)
	ChangeSystemMessage(ctx context.Context, text string, snap snapshot.Snapshot) (bridge.SystemMessageResult, error)
}

type localClient struct {
	svc *bridge.Service
}

func (c localClient) SetupModel(_ context.Context, req bridge.SetupRequest) (snapshot.Snapshot, error) {
	return c.svc.SetupModel(req)
}

func (c localClient) ProcessMessage(ctx context.Context, message string, snap snapshot.Snapshot) (bridge.MessageResult, error) {
	return c.svc.ProcessMessage(ctx, message, snap)
}

func (c localClient) GetInfo(_ context.Context, snap snapshot.Snapshot) (bridge.InfoResult, error) {
	return c.svc.GetInfo(snap)
}

func (c localClient) RefreshSession(_ context.Context, snap snapshot.Snapshot) (bridge.SessionResult, error) {
	return c.svc.RefreshSession(snap)
}

func (c localClient) ChangeSystemMessage(_ context.Context, text string, snap snapshot.Snapshot) (bridge.SystemMessageResult, error) {
	return c.svc.ChangeSystemMessage(text, snap)
}

// conversation ties a bridge client to one named snapshot on disk. Every
// successful call persists the returned snapshot; a failed call leaves the
// stored one alone.
type conversation struct {
	client bridgeClient
	store  *snapshot.FileStore
	name   string
	setup  bridge.SetupRequest
}

// current returns the stored snapshot, creating a fresh model when the
// session has never been used.
func (c *conversation) current(ctx context.Context) (snapshot.Snapshot, error) {
	snap, err := c.store.Read(c.name)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, snapshot.ErrNotFound) {
		return snapshot.Snapshot{}, err
	}

	snap, err = c.client.SetupModel(ctx, c.setup)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if err := c.store.Save(c.name, snap); err != nil {
		return snapshot.Snapshot{}, err
	}
	return snap, nil
}

func (c *conversation) ask(ctx context.Context, prompt string) (bridge.MessageResult, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return bridge.MessageResult{}, err
	}

	result, err := c.client.ProcessMessage(ctx, prompt, snap)
	if err != nil {
		return bridge.MessageResult{}, err
	}
	return result, c.store.Save(c.name, result.SerializedModel)
}

func (c *conversation) info(ctx context.Context) (bridge.InfoResult, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return bridge.InfoResult{}, err
	}
	return c.client.GetInfo(ctx, snap)
}

func (c *conversation) reset(ctx context.Context) (bridge.SessionResult, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return bridge.SessionResult{}, err
	}

	result, err := c.client.RefreshSession(ctx, snap)
	if err != nil {
		return bridge.SessionResult{}, err
	}
	return result, c.store.Save(c.name, result.SerializedModel)
}

func (c *conversation) changeSystemMessage(ctx context.Context, text string) (bridge.SystemMessageResult, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return bridge.SystemMessageResult{}, err
	}

	result, err := c.client.ChangeSystemMessage(ctx, text, snap)
	if err != nil {
		return bridge.SystemMessageResult{}, err
	}
	return result, c.store.Save(c.name, result.SerializedModel)
}
