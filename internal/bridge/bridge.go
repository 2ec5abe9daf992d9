// Package bridge implements the operations the GUI shell calls. Every call is
// stateless: it rebuilds an engine from the snapshot the caller holds, acts on
// it and hands back the updated snapshot.
package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/erg0nix/chatdesk/internal/config"
	"github.com/erg0nix/chatdesk/internal/models"
	"github.com/erg0nix/chatdesk/internal/providers"
	"github.com/erg0nix/chatdesk/internal/session"
	"github.com/erg0nix/chatdesk/internal/snapshot"
)

// SetupFailedMessage is what the GUI shows when a model cannot be created.
const SetupFailedMessage = "Error when loading model! Please check console."

type Service struct {
	Defaults  config.ModelConfig
	LookupKey func() (string, error)
	Dial      snapshot.Dialer
	Logger    *slog.Logger
}

// NewService wires the bridge to the OpenAI provider described by cfg.
func NewService(cfg config.Config) *Service {
	return &Service{
		Defaults:  cfg.Model,
		LookupKey: cfg.OpenAI.APIKeyLookup(),
		Dial:      OpenAIDialer(cfg.OpenAI, cfg.Debug, providers.NewLimiter(cfg.OpenAI.MaxConcurrent)),
		Logger:    slog.Default(),
	}
}

// OpenAIDialer builds one provider per snapshot; all of them share limiter.
func OpenAIDialer(openAI config.OpenAIConfig, debug config.DebugConfig, limiter *providers.Limiter) snapshot.Dialer {
	return func(apiKey string) (session.Completer, error) {
		provider := providers.NewOpenAIProvider(providers.OpenAIConfig{
			Endpoint:    openAI.Endpoint,
			APIKey:      apiKey,
			HTTPTimeout: openAI.Timeout(),
		}, debug)
		return limiter.Wrap(provider), nil
	}
}

type SetupRequest struct {
	Version       string `json:"version,omitempty"`
	SystemMessage string `json:"system_msg,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	MaxContext    int    `json:"max_context,omitempty"`
}

type MessageResult struct {
	Response        string            `json:"response"`
	ResponseTime    float64           `json:"response_time"`
	FinishReason    string            `json:"finish_reason"`
	SerializedModel snapshot.Snapshot `json:"serialized_model"`
}

type InfoResult struct {
	Info            session.Info      `json:"info"`
	SerializedModel snapshot.Snapshot `json:"serialized_model"`
}

type SessionResult struct {
	SessionInfo     session.Archive   `json:"session_info"`
	SerializedModel snapshot.Snapshot `json:"serialized_model"`
}

type SystemMessageResult struct {
	SystemMessage   string            `json:"sys_msg"`
	SessionInfo     session.Archive   `json:"session_info"`
	SerializedModel snapshot.Snapshot `json:"serialized_model"`
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// SetupModel creates a fresh engine. Empty request fields fall back to the
// configured defaults.
func (s *Service) SetupModel(req SetupRequest) (snapshot.Snapshot, error) {
	logger := s.logger()

	version := req.Version
	if version == "" {
		version = s.Defaults.Version
		if version == "" {
			version = models.Default
		}
		logger.Info("default model selected", "version", version)
	} else {
		logger.Info("got model from settings", "version", version)
	}

	systemMessage := req.SystemMessage
	if systemMessage == "" {
		systemMessage = s.Defaults.SystemMessage
	}
	if systemMessage == "" || systemMessage == session.DefaultSystemSentinel {
		logger.Info("default system message selected", "system_msg", session.DefaultSystemMessage)
	} else {
		logger.Info("got system message from settings", "system_msg", systemMessage)
	}

	maxContext := req.MaxContext
	if maxContext == 0 {
		maxContext = s.Defaults.MaxContext
	}
	logger.Info("selected max context", "max_context", maxContext)

	cfg, err := session.NewModelConfig(session.Options{
		Model:         version,
		SystemMessage: systemMessage,
		APIKey:        req.APIKey,
		MaxContext:    maxContext,
		LookupAPIKey:  s.LookupKey,
	})
	if err != nil {
		logger.Error("error when loading model", "error", err)
		return snapshot.Snapshot{}, err
	}

	client, err := s.Dial(cfg.APIKey)
	if err != nil {
		logger.Error("error when loading model", "error", err)
		return snapshot.Snapshot{}, session.WrapError(err, session.KindConfiguration, "create completion client")
	}

	engine, err := session.FromConfig(cfg, client, session.WithLogger(logger))
	if err != nil {
		logger.Error("error when loading model", "error", err)
		return snapshot.Snapshot{}, err
	}

	return snapshot.Serialize(engine), nil
}

func (s *Service) load(snap snapshot.Snapshot) (*session.Engine, error) {
	s.logger().Info("loading instance")

	engine, err := snapshot.Load(snap, s.Dial, session.WithLogger(s.logger()))
	if err != nil {
		s.logger().Error("failed to load model snapshot", "error", err)
		return nil, err
	}
	return engine, nil
}

// ProcessMessage sends one prompt. On failure the caller keeps its previous
// snapshot, which is still valid because a failed request changes nothing.
func (s *Service) ProcessMessage(ctx context.Context, message string, snap snapshot.Snapshot) (MessageResult, error) {
	logger := s.logger()
	logger.Info("received prompt", "length", len(message))

	engine, err := s.load(snap)
	if err != nil {
		return MessageResult{}, err
	}

	logger.Info("processing request")
	start := time.Now()
	exchange, err := engine.Request(ctx, message)
	elapsed := time.Since(start)
	if err != nil {
		return MessageResult{}, err
	}

	finishReason, _ := engine.LastFinishReason()
	logger.Info("finished processing request", "seconds", elapsed.Seconds(), "end_reason", finishReason)

	return MessageResult{
		Response:        exchange.Response,
		ResponseTime:    elapsed.Seconds(),
		FinishReason:    finishReason,
		SerializedModel: snapshot.Serialize(engine),
	}, nil
}

func (s *Service) GetInfo(snap snapshot.Snapshot) (InfoResult, error) {
	s.logger().Info("received info request")

	engine, err := s.load(snap)
	if err != nil {
		return InfoResult{}, err
	}

	info := engine.Info()
	s.logger().Info("info returned successfully", "request_count", info.RequestCount)

	return InfoResult{Info: info, SerializedModel: snapshot.Serialize(engine)}, nil
}

func (s *Service) RefreshSession(snap snapshot.Snapshot) (SessionResult, error) {
	s.logger().Info("received request to refresh session")

	engine, err := s.load(snap)
	if err != nil {
		return SessionResult{}, err
	}

	archived := engine.NewSession()
	s.logger().Info("session refreshed")

	return SessionResult{SessionInfo: archived, SerializedModel: snapshot.Serialize(engine)}, nil
}

func (s *Service) ChangeSystemMessage(text string, snap snapshot.Snapshot) (SystemMessageResult, error) {
	s.logger().Info("received request to change system message")

	engine, err := s.load(snap)
	if err != nil {
		return SystemMessageResult{}, err
	}

	archived := engine.ChangeSystemMessage(text)
	s.logger().Info("system message was changed")

	return SystemMessageResult{
		SystemMessage:   text,
		SessionInfo:     archived,
		SerializedModel: snapshot.Serialize(engine),
	}, nil
}
