package config

import "github.com/google/uuid"

// LearningModule learns which intent a free-form input most likely maps
// to, and remembers simple per-key user preferences, from accumulated
// success/failure counts.
type LearningModule struct {
	engine *Engine
}

// NewLearningModule registers the learning module and its schema, then
// wires it to observe completed turns.
func NewLearningModule(engine *Engine, mm *ModuleManager) *LearningModule {
	lm := &LearningModule{engine: engine}

	mm.RegisterModule(&Module{
		ID:       "learning",
		Name:     "Pattern Learning",
		Version:  "1.0.0",
		Enabled:  true,
		Priority: 50,
		Config: map[string]interface{}{
			"min_success_count": 3,
		},
		SchemaSQL: lm.schema(),
	})

	mm.RegisterHook(&Hook{
		ModuleID: "learning",
		Event:    "turn_complete",
		Handler:  "pattern_learn",
		Priority: 100,
		Enabled:  true,
	})

	return lm
}

func (lm *LearningModule) schema() string {
	return `
	CREATE TABLE IF NOT EXISTS learned_intents (
		id TEXT PRIMARY KEY,
		input_pattern TEXT NOT NULL,
		detected_intent TEXT NOT NULL,
		confidence REAL DEFAULT 0.5,
		success_count INTEGER DEFAULT 0,
		failure_count INTEGER DEFAULT 0,
		last_used_at INTEGER,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_learned_intents ON learned_intents(input_pattern, confidence DESC);

	CREATE TABLE IF NOT EXISTS user_preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		confidence REAL DEFAULT 0.5,
		updated_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	`
}

// RecordSuccess records that inputPattern correctly matched intent.
func (lm *LearningModule) RecordSuccess(inputPattern, intent string) error {
	n, err := lm.engine.Exec(`
		UPDATE learned_intents
		SET success_count = success_count + 1,
			confidence = CAST(success_count + 1 AS REAL) / (success_count + 1 + failure_count),
			last_used_at = strftime('%s', 'now')
		WHERE input_pattern = ? AND detected_intent = ?
	`, inputPattern, intent)
	if err != nil || n > 0 {
		return err
	}

	id := uuid.New().String()
	_, err = lm.engine.Exec(`
		INSERT INTO learned_intents (id, input_pattern, detected_intent, success_count, last_used_at)
		VALUES (?, ?, ?, 1, strftime('%s', 'now'))
	`, id, inputPattern, intent)
	return err
}

// RecordFailure records that inputPattern did not match intent.
func (lm *LearningModule) RecordFailure(inputPattern, intent string) error {
	_, err := lm.engine.Exec(`
		UPDATE learned_intents
		SET failure_count = failure_count + 1,
			confidence = CAST(success_count AS REAL) / (success_count + failure_count + 1)
		WHERE input_pattern = ? AND detected_intent = ?
	`, inputPattern, intent)
	return err
}

// Suggest returns the highest-confidence learned intent for input, if
// any has cleared the acceptance threshold.
func (lm *LearningModule) Suggest(input string) (intent string, confidence float64, ok bool) {
	err := lm.engine.QueryRow(`
		SELECT detected_intent, confidence
		FROM learned_intents
		WHERE ? LIKE '%' || input_pattern || '%' AND confidence >= 0.7
		ORDER BY confidence DESC, success_count DESC
		LIMIT 1
	`, input).Scan(&intent, &confidence)
	return intent, confidence, err == nil
}

// LearnPreference nudges a preference's confidence up each time the
// same value is chosen again.
func (lm *LearningModule) LearnPreference(key, value string) error {
	_, err := lm.engine.Exec(`
		INSERT INTO user_preferences (key, value, confidence)
		VALUES (?, ?, 0.6)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			confidence = MIN(1.0, confidence + 0.1),
			updated_at = strftime('%s', 'now')
	`, key, value)
	return err
}

// Preference returns a previously learned preference, if any.
func (lm *LearningModule) Preference(key string) (value string, confidence float64, ok bool) {
	err := lm.engine.QueryRow(`
		SELECT value, confidence FROM user_preferences WHERE key = ?
	`, key).Scan(&value, &confidence)
	return value, confidence, err == nil
}
