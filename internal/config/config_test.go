package config

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := zap.NewNop().Sugar()
	e, err := NewEngine(filepath.Join(t.TempDir(), "test.db"), log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestConfigGetSetRoundTrips(t *testing.T) {
	e := newTestEngine(t)

	if err := e.SetConfig("temperature", "0.9"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	got, err := e.GetConfig("temperature")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got != "0.9" {
		t.Errorf("got %q, want 0.9", got)
	}
}

func TestConfigSeedDefaults(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		key  string
		want string
	}{
		{"default_provider", "cerebras"},
		{"auto_commit", "true"},
	}
	for _, c := range cases {
		got, err := e.GetConfig(c.key)
		if err != nil {
			t.Fatalf("GetConfig(%q): %v", c.key, err)
		}
		if got != c.want {
			t.Errorf("%s: got %q, want %q", c.key, got, c.want)
		}
	}
}

func TestGetConfigBoolAndInt(t *testing.T) {
	e := newTestEngine(t)
	e.SetConfig("flag", "true")
	e.SetConfig("count", "7")

	if !e.GetConfigBool("flag") {
		t.Error("expected flag to be true")
	}
	if e.GetConfigInt("count") != 7 {
		t.Errorf("got %d, want 7", e.GetConfigInt("count"))
	}
}

func TestModuleManagerRegisterAndEmit(t *testing.T) {
	e := newTestEngine(t)
	log := zap.NewNop().Sugar()
	mm := NewModuleManager(e, log)

	if err := mm.RegisterModule(&Module{ID: "probe", Name: "Probe", Enabled: true, Priority: 10}); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	if err := mm.RegisterHook(&Hook{ModuleID: "probe", Event: "turn_complete", Handler: "log", Enabled: true}); err != nil {
		t.Fatalf("RegisterHook: %v", err)
	}

	mm.EnableDebug()
	mm.Emit("turn_complete", map[string]interface{}{"ok": true})

	log2 := mm.DebugLog()
	if len(log2) != 1 {
		t.Fatalf("got %d debug events, want 1", len(log2))
	}
	if log2[0].Level != "debug" {
		t.Errorf("got level %q, want debug", log2[0].Level)
	}
}

func TestLearningModuleSuccessRaisesConfidence(t *testing.T) {
	e := newTestEngine(t)
	mm := NewModuleManager(e, zap.NewNop().Sugar())
	lm := NewLearningModule(e, mm)

	for i := 0; i < 5; i++ {
		if err := lm.RecordSuccess("undo that", "undo"); err != nil {
			t.Fatalf("RecordSuccess: %v", err)
		}
	}

	intent, confidence, ok := lm.Suggest("please undo that")
	if !ok {
		t.Fatal("expected a suggestion after repeated successes")
	}
	if intent != "undo" {
		t.Errorf("got intent %q, want undo", intent)
	}
	if confidence < 0.7 {
		t.Errorf("got confidence %v, want >= 0.7", confidence)
	}
}

func TestLearningModulePreferenceRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	mm := NewModuleManager(e, zap.NewNop().Sugar())
	lm := NewLearningModule(e, mm)

	if err := lm.LearnPreference("editor", "vim"); err != nil {
		t.Fatalf("LearnPreference: %v", err)
	}
	value, _, ok := lm.Preference("editor")
	if !ok || value != "vim" {
		t.Errorf("got value=%q ok=%v, want vim/true", value, ok)
	}
}
