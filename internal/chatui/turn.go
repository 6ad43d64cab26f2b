// Package chatui drives one interactive session: it assembles prompts
// from the chronology engine, streams a provider's response through the
// patch resolver, applies accepted edits to disk, and records the
// resulting pair in the session view and history store. cmd/aico's
// one-shot commands and the interactive REPL both sit on top of Engine.
package chatui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jurriaanhof/aico-go/internal/chronology"
	"github.com/jurriaanhof/aico-go/internal/config"
	"github.com/jurriaanhof/aico-go/internal/diffing"
	"github.com/jurriaanhof/aico-go/internal/fsutil"
	gitpkg "github.com/jurriaanhof/aico-go/internal/git"
	"github.com/jurriaanhof/aico-go/internal/historystore"
	"github.com/jurriaanhof/aico-go/internal/models"
	"github.com/jurriaanhof/aico-go/internal/providers"
	"github.com/jurriaanhof/aico-go/internal/session"
	"go.uber.org/zap"
)

// Engine bundles the components a turn needs: config/module system,
// provider registry, git integration, and the active session's store
// and view.
type Engine struct {
	Cfg      *config.Engine
	Modules  *config.ModuleManager
	Registry *providers.Registry
	Git      *gitpkg.Manager
	Log      *zap.SugaredLogger

	Store       *historystore.Store
	View        *models.SessionView
	ViewPath    string
	SessionRoot string
}

// SaveView persists the current in-memory view atomically.
func (e *Engine) SaveView() error {
	return session.SaveView(e.ViewPath, e.View)
}

// OnDelta streams one rendered display item as soon as it is ready,
// letting a caller print incrementally instead of waiting for the
// whole turn to finish.
type OnDelta func(models.DisplayItem)

// RunTurn executes one full turn: assembles the prompt from history and
// context, streams the active provider's response through the patch
// resolver, appends the resulting pair, and returns the assistant's
// rendered result. onDelta may be nil.
func (e *Engine) RunTurn(ctx context.Context, userContent string, mode models.Mode, onDelta OnDelta) (*models.InteractionResult, error) {
	provider := e.Registry.Current()
	if provider == nil {
		return nil, fmt.Errorf("no provider available")
	}

	files, err := LoadContextFiles(e.SessionRoot, e.View.ContextFiles)
	if err != nil {
		return nil, err
	}

	history, err := session.ActiveHistory(e.Store, e.View)
	if err != nil {
		return nil, err
	}

	historyTimestamps := make([]time.Time, len(history))
	for i, r := range history {
		historyTimestamps[i] = r.Timestamp
	}

	passthrough := e.Cfg != nil && e.Cfg.GetConfigBool("passthrough")

	state := chronology.ResolveContextState(files, historyTimestamps)
	assembled := chronology.AssembleMessages(mode, passthrough, history, state, userContent, nil)

	messages := make([]providers.Message, len(assembled))
	for i, m := range assembled {
		messages[i] = providers.Message{Role: string(m.Role), Content: m.Content}
	}

	temperature := 0.7
	if e.Cfg != nil {
		if t, err := e.Cfg.GetConfig("temperature"); err == nil && t != "" {
			fmt.Sscanf(t, "%f", &temperature)
		}
	}

	start := time.Now()
	stream, err := provider.Stream(ctx, &providers.Request{
		Model:       e.View.Model,
		Messages:    messages,
		Temperature: temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	baseline := Baseline(files)
	parser := diffing.New(baseline, e.SessionRoot)

	var tokensIn, tokensOut int
	for chunk := range stream {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		if chunk.Delta != "" {
			parser.Feed(chunk.Delta)
			for {
				item, ok := parser.Next()
				if !ok {
					break
				}
				if d, ok := item.ToDisplayItem(false); ok && onDelta != nil {
					onDelta(d)
				}
			}
		}
		if chunk.Done {
			tokensIn, tokensOut = chunk.TokensIn, chunk.TokensOut
		}
	}

	diff, display, warnings := parser.FinalResolve()
	for _, w := range warnings {
		e.Log.Warnw("patch resolver warning", "warning", w)
	}

	durationMs := uint64(time.Since(start).Milliseconds())
	content := renderPlainText(display)

	modelName := provider.ID()
	var unifiedDiff *string
	if diff != "" {
		unifiedDiff = &diff
	}

	var tu *models.TokenUsage
	if tokensIn > 0 || tokensOut > 0 {
		tu = &models.TokenUsage{
			PromptTokens:     uint32(tokensIn),
			CompletionTokens: uint32(tokensOut),
			TotalTokens:      uint32(tokensIn + tokensOut),
		}
	}

	now := time.Now().UTC()
	userRecord := models.HistoryRecord{Role: models.RoleUser, Content: userContent, Mode: mode, Timestamp: now}
	assistantRecord := models.HistoryRecord{
		Role:       models.RoleAssistant,
		Content:    content,
		Mode:       mode,
		Timestamp:  now,
		Model:      &modelName,
		TokenUsage: tu,
		DurationMs: &durationMs,
		Derived:    &models.DerivedContent{UnifiedDiff: unifiedDiff, DisplayContent: display},
	}

	if _, err := session.AppendPair(e.View, e.Store, userRecord, assistantRecord); err != nil {
		return nil, err
	}
	if err := e.SaveView(); err != nil {
		return nil, err
	}

	e.Modules.Emit("turn_complete", map[string]interface{}{
		"tokens_in":  tokensIn,
		"tokens_out": tokensOut,
		"duration_ms": durationMs,
		"mode":        string(mode),
	})

	result := &models.InteractionResult{
		Content:      content,
		DisplayItems: display,
		TokenUsage:   tu,
		DurationMs:   durationMs,
		UnifiedDiff:  unifiedDiff,
	}

	if mode == models.ModeDiff && len(parser.Overlay()) > 0 {
		if err := e.applyOverlay(parser.Overlay()); err != nil {
			e.Log.Warnw("could not apply file changes", "error", err)
		}
	}

	return result, nil
}

// applyOverlay writes every resolved file in overlay back to disk,
// validating each path stays inside the session root, then auto-commits
// if configured to.
func (e *Engine) applyOverlay(overlay map[string]string) error {
	paths := make([]string, 0, len(overlay))
	for p := range overlay {
		paths = append(paths, filepath.Join(e.SessionRoot, filepath.FromSlash(p)))
	}

	valid, hasErrors := fsutil.ValidateInputPaths(e.SessionRoot, paths, false)
	if hasErrors {
		e.Log.Warnw("some resolved paths were rejected as outside the session root")
	}

	validSet := make(map[string]bool, len(valid))
	for _, p := range valid {
		validSet[p] = true
	}

	var written []string
	for p, content := range overlay {
		if !validSet[p] {
			continue
		}
		abs := filepath.Join(e.SessionRoot, filepath.FromSlash(p))
		if dir := filepath.Dir(abs); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		written = append(written, p)
	}

	if len(written) == 0 {
		return nil
	}

	if e.Cfg != nil && e.Cfg.GetConfigBool("auto_commit") && e.Git != nil && e.Git.IsRepo() {
		e.Git.SetModel(e.View.Model)
		message := fmt.Sprintf("aico: update %d file(s)", len(written))
		if len(written) == 1 {
			message = fmt.Sprintf("aico: update %s", written[0])
		}
		hash, err := e.Git.AutoCommit(written, message, len(e.View.MessageIndices)/2-1)
		if err != nil {
			e.Log.Warnw("git auto-commit failed", "error", err)
		} else {
			e.Log.Infow("committed", "hash", hash)
		}
	}

	return nil
}

func renderPlainText(display []models.DisplayItem) string {
	var out string
	for _, d := range display {
		out += d.Content
	}
	return out
}
