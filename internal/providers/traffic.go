package providers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/erg0nix/chatdesk/internal/config"
	"github.com/erg0nix/chatdesk/internal/core"
)

// TrafficLog appends one JSON line per request, response or failure to a
// daily file under the debug directory. A nil TrafficLog records nothing.
type TrafficLog struct {
	dir       string
	requests  bool
	responses bool
	logger    *slog.Logger

	mu sync.Mutex
}

type TrafficEntry struct {
	Time       time.Time        `json:"time"`
	RequestID  core.RequestID   `json:"request_id"`
	Kind       string           `json:"kind"`
	Model      string           `json:"model,omitempty"`
	Messages   []core.Message   `json:"messages,omitempty"`
	Completion *core.Completion `json:"completion,omitempty"`
	ElapsedMS  int64            `json:"elapsed_ms,omitempty"`
	StatusCode int              `json:"status_code,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// NewTrafficLog returns nil unless debug logging of requests or responses is on.
func NewTrafficLog(debug config.DebugConfig, logger *slog.Logger) *TrafficLog {
	if !debug.LogRequests && !debug.LogResponses {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TrafficLog{
		dir:       debug.LogDirectory,
		requests:  debug.LogRequests,
		responses: debug.LogResponses,
		logger:    logger,
	}
}

func (t *TrafficLog) Request(id core.RequestID, model string, messages []core.Message) {
	if t == nil || !t.requests {
		return
	}

	t.append(TrafficEntry{RequestID: id, Kind: "request", Model: model, Messages: messages})
	t.logger.Debug("openai request", "request_id", id, "model", model, "message_count", len(messages))
}

func (t *TrafficLog) Response(id core.RequestID, completion core.Completion, elapsed time.Duration) {
	if t == nil || !t.responses {
		return
	}

	t.append(TrafficEntry{RequestID: id, Kind: "response", Completion: &completion, ElapsedMS: elapsed.Milliseconds()})
}

// Failure is recorded whenever either direction is being logged; the last
// prompt goes to the process log as well.
func (t *TrafficLog) Failure(id core.RequestID, statusCode int, cause string, messages []core.Message) {
	if t == nil {
		return
	}

	t.append(TrafficEntry{RequestID: id, Kind: "error", StatusCode: statusCode, Error: cause, Messages: messages})

	lastPrompt := ""
	if n := len(messages); n > 0 {
		lastPrompt = preview(messages[n-1].Content, 50)
	}

	t.logger.Error("openai request failed",
		"request_id", id,
		"status_code", statusCode,
		"error", cause,
		"last_prompt", lastPrompt,
	)
}

// preview keeps at most limit runes of text.
func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func (t *TrafficLog) path(now time.Time) string {
	return filepath.Join(t.dir, fmt.Sprintf("openai_%s.jsonl", now.Format(time.DateOnly)))
}

func (t *TrafficLog) append(entry TrafficEntry) {
	if t.dir == "" {
		return
	}

	entry.Time = time.Now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		t.logger.Warn("traffic log entry not encodable", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.dir, 0o700); err != nil {
		t.logger.Warn("traffic log directory not writable", "error", err)
		return
	}

	f, err := os.OpenFile(t.path(entry.Time), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.logger.Warn("traffic log not writable", "error", err)
		return
	}
	defer f.Close()

	_, _ = f.Write(append(data, '\n'))
}
