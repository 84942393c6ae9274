package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a structured logger at debug level, and
// failures at warn level. It implements all three hook interfaces.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks logging to logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{logger: logger.WithPrefix("events")}
}

// Register installs h for every hook category.
func (h *LogHooks) Register() {
	SetExploreHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnExpandStart(_ context.Context, id string) {
	h.logger.Debug("expand", "id", id)
}

func (h *LogHooks) OnExpandComplete(_ context.Context, id string, vertices, edges int, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("expand failed", "id", id, "err", err, "took", d)
		return
	}
	h.logger.Debug("expanded", "id", id, "vertices", vertices, "edges", edges, "took", d)
}

func (h *LogHooks) OnCollapse(_ context.Context, id string, vertices, edges int) {
	h.logger.Debug("collapsed", "id", id, "vertices", vertices, "edges", edges)
}

func (h *LogHooks) OnRemove(_ context.Context, entityType, id string, err error) {
	if err != nil {
		h.logger.Warn("remove failed", "type", entityType, "id", id, "err", err)
		return
	}
	h.logger.Debug("removed", "type", entityType, "id", id)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "kind", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "kind", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "kind", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "host", host, "path", path, "status", status, "took", d)
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Warn("request failed", "method", method, "host", host, "path", path, "err", err)
}
