// Package config provides the hot-reloadable SQLite-backed store behind
// aico's configuration, provider registry, module/hook system, and
// learned-pattern store. History itself lives in internal/historystore,
// not here: this package holds everything that isn't a conversation
// record.
package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"
)

// Engine is the SQL engine behind aico's hot-reloadable configuration,
// module system, and learning store.
type Engine struct {
	db     *sql.DB
	dbPath string
	log    *zap.SugaredLogger

	mu       sync.RWMutex
	watchers []func(event string)

	ctx    context.Context
	cancel context.CancelFunc

	configVersion int64
	reloadCh      chan struct{}
}

// NewEngine opens (creating if necessary) the SQLite database at dbPath.
// An empty dbPath creates a new timestamped database file under .aico/
// in the current directory on every call.
func NewEngine(dbPath string, log *zap.SugaredLogger) (*Engine, error) {
	if log == nil {
		l, _ := zap.NewProduction()
		log = l.Sugar()
	}

	if dbPath == "" {
		aicoDir := ".aico"
		if err := os.MkdirAll(aicoDir, 0o700); err != nil {
			return nil, fmt.Errorf("create .aico dir: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		dbPath = filepath.Join(aicoDir, fmt.Sprintf("config_%s.db", timestamp))
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		db:       db,
		dbPath:   dbPath,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		reloadCh: make(chan struct{}, 1),
	}

	if err := e.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	go e.watchConfig()

	return e, nil
}

// DB returns the underlying connection for direct queries by adjacent
// packages (e.g. the provider registry reading its own table).
func (e *Engine) DB() *sql.DB { return e.db }

// Path returns the database file path.
func (e *Engine) Path() string { return e.dbPath }

func (e *Engine) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		type TEXT DEFAULT 'string' CHECK (type IN ('string', 'int', 'bool', 'json')),
		description TEXT,
		updated_at INTEGER DEFAULT (strftime('%s', 'now')),
		version INTEGER DEFAULT 1
	);

	CREATE TRIGGER IF NOT EXISTS config_version_bump
	AFTER UPDATE ON config
	BEGIN
		UPDATE config SET version = version + 1, updated_at = strftime('%s', 'now') WHERE key = NEW.key;
	END;

	CREATE TABLE IF NOT EXISTS providers (
		provider_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL,
		api_key_env TEXT NOT NULL,
		default_model TEXT NOT NULL,
		enabled INTEGER DEFAULT 1,
		priority INTEGER DEFAULT 100,
		rate_limit_rpm INTEGER DEFAULT 60,
		config TEXT DEFAULT '{}',
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS modules (
		module_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version TEXT DEFAULT '1.0.0',
		enabled INTEGER DEFAULT 1,
		priority INTEGER DEFAULT 100,
		config TEXT DEFAULT '{}',
		schema_sql TEXT,
		created_at INTEGER DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS module_hooks (
		hook_id TEXT PRIMARY KEY,
		module_id TEXT NOT NULL,
		event TEXT NOT NULL,
		handler TEXT NOT NULL,
		priority INTEGER DEFAULT 100,
		enabled INTEGER DEFAULT 1,
		config TEXT DEFAULT '{}',

		FOREIGN KEY(module_id) REFERENCES modules(module_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_hooks_event ON module_hooks(event, enabled, priority);

	CREATE TABLE IF NOT EXISTS learning_patterns (
		pattern_id TEXT PRIMARY KEY,
		pattern_type TEXT NOT NULL,
		input_pattern TEXT NOT NULL,
		output_pattern TEXT,
		success_count INTEGER DEFAULT 0,
		failure_count INTEGER DEFAULT 0,
		last_used_at INTEGER,
		metadata TEXT DEFAULT '{}',
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_patterns_type ON learning_patterns(pattern_type, success_count DESC);

	CREATE TABLE IF NOT EXISTS feedback (
		feedback_id TEXT PRIMARY KEY,
		pair_global_id INTEGER NOT NULL,
		rating INTEGER CHECK (rating BETWEEN -1 AND 1),
		feedback_type TEXT,
		content TEXT,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS intents (
		intent_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		patterns TEXT NOT NULL,
		action TEXT NOT NULL,
		priority INTEGER DEFAULT 100,
		enabled INTEGER DEFAULT 1,
		config TEXT DEFAULT '{}',
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_intents_priority ON intents(enabled, priority DESC);

	INSERT OR IGNORE INTO providers (provider_id, name, base_url, api_key_env, default_model, priority) VALUES
	('cerebras', 'Cerebras', 'https://api.cerebras.ai/v1', 'CEREBRAS_API_KEY', 'zai-glm-4.6', 1),
	('openrouter', 'OpenRouter', 'https://openrouter.ai/api/v1', 'OPENROUTER_API_KEY', 'anthropic/claude-3.5-sonnet', 2);

	INSERT OR IGNORE INTO config (key, value, type, description) VALUES
	('default_provider', 'cerebras', 'string', 'Default LLM provider'),
	('default_mode', 'conversation', 'string', 'Default turn mode: conversation or diff'),
	('auto_commit', 'true', 'bool', 'Auto-commit applied changes to git'),
	('confirm_changes', 'true', 'bool', 'Ask confirmation before applying changes'),
	('stream_output', 'true', 'bool', 'Stream LLM output token by token'),
	('max_context_messages', '20', 'int', 'Max history pairs to include in a turn'),
	('temperature', '0.7', 'string', 'LLM sampling temperature');

	INSERT OR IGNORE INTO intents (intent_id, name, patterns, action, priority) VALUES
	('undo', 'Undo', '["undo", "revert"]', 'undo', 1),
	('switch', 'Switch Provider', '["switch to", "use provider"]', 'switch', 2),
	('help', 'Help', '["help", "/help"]', 'help', 3),
	('history', 'History', '["history", "/history"]', 'history', 4),
	('diff', 'Diff', '["diff", "/diff", "changes"]', 'diff', 5);
	`

	_, err := e.db.Exec(schema)
	return err
}

// watchConfig polls the config table's version column, the same
// trigger-bumped hot-reload signal the teacher used, and fans out a
// "config_changed" notification whenever it advances.
func (e *Engine) watchConfig() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			var maxVersion int64
			if err := e.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM config").Scan(&maxVersion); err != nil {
				continue
			}
			if maxVersion > e.configVersion {
				e.configVersion = maxVersion
				e.notifyWatchers("config_changed")
				select {
				case e.reloadCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// OnChange registers a callback invoked whenever config or modules
// change.
func (e *Engine) OnChange(fn func(event string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watchers = append(e.watchers, fn)
}

func (e *Engine) notifyWatchers(event string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, fn := range e.watchers {
		go fn(event)
	}
}

// ReloadCh signals whenever a config change has been observed.
func (e *Engine) ReloadCh() <-chan struct{} { return e.reloadCh }

// GetConfig retrieves a config value, returning "" if unset.
func (e *Engine) GetConfig(key string) (string, error) {
	var value string
	err := e.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig sets a config value, bumping its hot-reload version.
func (e *Engine) SetConfig(key, value string) error {
	_, err := e.db.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = strftime('%s', 'now'), version = version + 1
	`, key, value)
	return err
}

func (e *Engine) GetConfigBool(key string) bool {
	val, _ := e.GetConfig(key)
	return val == "true" || val == "1"
}

func (e *Engine) GetConfigInt(key string) int {
	val, _ := e.GetConfig(key)
	var i int
	fmt.Sscanf(val, "%d", &i)
	return i
}

// Close shuts the engine down, checkpointing the WAL first.
func (e *Engine) Close() error {
	e.cancel()
	_, _ = e.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return e.db.Close()
}

// WatchFile watches an external file (e.g. a session's .ai_session.json
// or a context file) for writes, invoking callback on each one.
func (e *Engine) WatchFile(path string, callback func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-e.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					callback()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.log.Warnw("file watcher error", "path", path, "error", err)
			}
		}
	}()

	return watcher.Add(path)
}

func (e *Engine) Exec(query string, args ...interface{}) (int64, error) {
	result, err := e.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (e *Engine) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return e.db.Query(query, args...)
}

func (e *Engine) QueryRow(query string, args ...interface{}) *sql.Row {
	return e.db.QueryRow(query, args...)
}
