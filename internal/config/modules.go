package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModuleManager handles dynamic module loading and event hooks backed
// by the modules/module_hooks tables.
type ModuleManager struct {
	engine *Engine
	log    *zap.SugaredLogger

	mu      sync.RWMutex
	modules map[string]*Module
	hooks   map[string][]*Hook

	debugEnabled bool
	debugMu      sync.Mutex
	debugLog     []DebugEvent
}

// Module is a loadable unit of behavior, optionally carrying its own
// schema migration to run once on registration.
type Module struct {
	ID        string                 `json:"module_id"`
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	Enabled   bool                   `json:"enabled"`
	Priority  int                    `json:"priority"`
	Config    map[string]interface{} `json:"config"`
	SchemaSQL string                 `json:"schema_sql"`
}

// Hook binds a module to an event with a named built-in handler.
type Hook struct {
	ID       string                 `json:"hook_id"`
	ModuleID string                 `json:"module_id"`
	Event    string                 `json:"event"`
	Handler  string                 `json:"handler"`
	Priority int                    `json:"priority"`
	Enabled  bool                   `json:"enabled"`
	Config   map[string]interface{} `json:"config"`
}

// HookContext is passed to every handler invoked for an event.
type HookContext struct {
	Event     string
	Payload   map[string]interface{}
	Timestamp time.Time
	TraceID   string
}

// DebugEvent records one hook invocation, kept in a bounded ring buffer
// for after-the-fact inspection.
type DebugEvent struct {
	ID        string        `json:"id"`
	TraceID   string        `json:"trace_id"`
	Timestamp time.Time     `json:"timestamp"`
	Level     string        `json:"level"`
	Event     string        `json:"event"`
	Module    string        `json:"module"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// HookHandler implements a named, built-in hook action.
type HookHandler func(log *zap.SugaredLogger, ctx *HookContext) error

var builtinHandlers = map[string]HookHandler{
	"log":           handleLog,
	"pattern_learn": handlePatternLearn,
}

// NewModuleManager loads modules/hooks from the engine and subscribes
// to hot-reload notifications.
func NewModuleManager(engine *Engine, log *zap.SugaredLogger) *ModuleManager {
	mm := &ModuleManager{
		engine:   engine,
		log:      log,
		modules:  make(map[string]*Module),
		hooks:    make(map[string][]*Hook),
		debugLog: make([]DebugEvent, 0, 256),
	}

	mm.reload()

	engine.OnChange(func(event string) {
		if event == "config_changed" || event == "module_changed" {
			mm.reload()
		}
	})

	return mm
}

func (mm *ModuleManager) reload() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.modules = make(map[string]*Module)
	mm.hooks = make(map[string][]*Hook)

	rows, err := mm.engine.Query(`
		SELECT module_id, name, version, enabled, priority, config, schema_sql
		FROM modules WHERE enabled = 1 ORDER BY priority
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m Module
		var configJSON string
		var schemaSQL *string
		if err := rows.Scan(&m.ID, &m.Name, &m.Version, &m.Enabled, &m.Priority, &configJSON, &schemaSQL); err != nil {
			continue
		}
		json.Unmarshal([]byte(configJSON), &m.Config)
		if schemaSQL != nil {
			m.SchemaSQL = *schemaSQL
		}
		mm.modules[m.ID] = &m
	}

	hookRows, err := mm.engine.Query(`
		SELECT hook_id, module_id, event, handler, priority, enabled, config
		FROM module_hooks WHERE enabled = 1 ORDER BY priority
	`)
	if err != nil {
		return err
	}
	defer hookRows.Close()

	for hookRows.Next() {
		var h Hook
		var configJSON string
		if err := hookRows.Scan(&h.ID, &h.ModuleID, &h.Event, &h.Handler, &h.Priority, &h.Enabled, &configJSON); err != nil {
			continue
		}
		json.Unmarshal([]byte(configJSON), &h.Config)
		mm.hooks[h.Event] = append(mm.hooks[h.Event], &h)
	}

	return nil
}

// RegisterModule upserts a module and runs its schema migration, if any.
func (mm *ModuleManager) RegisterModule(m *Module) error {
	configJSON, _ := json.Marshal(m.Config)

	_, err := mm.engine.Exec(`
		INSERT INTO modules (module_id, name, version, enabled, priority, config, schema_sql)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(module_id) DO UPDATE SET
			name = excluded.name, version = excluded.version, enabled = excluded.enabled,
			priority = excluded.priority, config = excluded.config, schema_sql = excluded.schema_sql,
			updated_at = strftime('%s', 'now')
	`, m.ID, m.Name, m.Version, m.Enabled, m.Priority, string(configJSON), m.SchemaSQL)
	if err != nil {
		return err
	}

	if m.SchemaSQL != "" {
		if _, err := mm.engine.Exec(m.SchemaSQL); err != nil {
			return fmt.Errorf("execute module schema: %w", err)
		}
	}

	return mm.reload()
}

// RegisterHook upserts a hook binding a module's handler to an event.
func (mm *ModuleManager) RegisterHook(h *Hook) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	configJSON, _ := json.Marshal(h.Config)

	_, err := mm.engine.Exec(`
		INSERT INTO module_hooks (hook_id, module_id, event, handler, priority, enabled, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hook_id) DO UPDATE SET
			event = excluded.event, handler = excluded.handler, priority = excluded.priority,
			enabled = excluded.enabled, config = excluded.config
	`, h.ID, h.ModuleID, h.Event, h.Handler, h.Priority, h.Enabled, string(configJSON))
	if err != nil {
		return err
	}

	return mm.reload()
}

// Emit runs every enabled hook registered for event, in priority order.
func (mm *ModuleManager) Emit(event string, payload map[string]interface{}) {
	mm.mu.RLock()
	hooks := mm.hooks[event]
	mm.mu.RUnlock()
	if len(hooks) == 0 {
		return
	}

	traceID := uuid.New().String()
	ctx := &HookContext{Event: event, Payload: payload, Timestamp: time.Now(), TraceID: traceID}

	for _, hook := range hooks {
		handler, ok := builtinHandlers[hook.Handler]
		if !ok {
			continue
		}
		start := time.Now()
		level, msg := "debug", fmt.Sprintf("hook %s executed", hook.Handler)
		if err := handler(mm.log, ctx); err != nil {
			level, msg = "error", fmt.Sprintf("hook %s failed: %v", hook.Handler, err)
		}
		mm.logDebug(DebugEvent{
			ID: uuid.New().String(), TraceID: traceID, Timestamp: time.Now(),
			Level: level, Event: event, Module: hook.ModuleID, Message: msg, Duration: time.Since(start),
		})
	}
}

func (mm *ModuleManager) EnableDebug()  { mm.debugEnabled = true }
func (mm *ModuleManager) DisableDebug() { mm.debugEnabled = false }

// DebugLog returns a snapshot of the bounded in-memory hook trace.
func (mm *ModuleManager) DebugLog() []DebugEvent {
	mm.debugMu.Lock()
	defer mm.debugMu.Unlock()
	out := make([]DebugEvent, len(mm.debugLog))
	copy(out, mm.debugLog)
	return out
}

func (mm *ModuleManager) logDebug(event DebugEvent) {
	if !mm.debugEnabled {
		return
	}
	mm.debugMu.Lock()
	defer mm.debugMu.Unlock()
	if len(mm.debugLog) >= 1000 {
		mm.debugLog = mm.debugLog[1:]
	}
	mm.debugLog = append(mm.debugLog, event)
}

func handleLog(log *zap.SugaredLogger, ctx *HookContext) error {
	log.Infow(ctx.Event, "payload", ctx.Payload, "trace_id", ctx.TraceID)
	return nil
}

// handlePatternLearn records a pattern observation the learning module
// later scores; this hook only validates shape, recording is done by
// LearningModule.RecordSuccess/RecordFailure.
func handlePatternLearn(_ *zap.SugaredLogger, ctx *HookContext) error {
	patternType, _ := ctx.Payload["pattern_type"].(string)
	input, _ := ctx.Payload["input"].(string)
	if patternType == "" || input == "" {
		return fmt.Errorf("pattern_learn: missing pattern_type or input")
	}
	return nil
}
