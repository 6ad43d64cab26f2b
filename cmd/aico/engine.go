package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jurriaanhof/aico-go/internal/chatui"
	"github.com/jurriaanhof/aico-go/internal/config"
	gitpkg "github.com/jurriaanhof/aico-go/internal/git"
	"github.com/jurriaanhof/aico-go/internal/historystore"
	"github.com/jurriaanhof/aico-go/internal/models"
	"github.com/jurriaanhof/aico-go/internal/providers"
	"github.com/jurriaanhof/aico-go/internal/session"
	"go.uber.org/zap"
)

const (
	historyDirName = ".aico/history"
	defaultModel   = "zai-glm-4.6"
)

// openEngine locates the nearest session pointer above the current
// directory, loads its view, and wires up the rest of the components a
// turn or report command needs.
func openEngine() (*chatui.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	pointerPath, ok := session.FindSessionFile(cwd)
	if !ok {
		return nil, fmt.Errorf("no aico session found here or in a parent directory; run `aico init` first")
	}

	pointer, err := session.LoadPointer(pointerPath)
	if err != nil {
		return nil, err
	}

	viewPath := session.ViewPath(pointerPath, *pointer)
	view, err := session.LoadView(viewPath)
	if err != nil {
		return nil, err
	}

	sessionRoot := filepath.Dir(pointerPath)
	return buildEngine(sessionRoot, viewPath, view)
}

func buildEngine(sessionRoot, viewPath string, view *models.SessionView) (*chatui.Engine, error) {
	log, _ := zap.NewProduction()
	sugar := log.Sugar()

	aicoDir := filepath.Join(sessionRoot, ".aico")
	if err := os.MkdirAll(aicoDir, 0o700); err != nil {
		return nil, fmt.Errorf("create .aico dir: %w", err)
	}
	cfg, err := config.NewEngine(filepath.Join(aicoDir, "config.db"), sugar)
	if err != nil {
		return nil, fmt.Errorf("open config engine: %w", err)
	}

	mm := config.NewModuleManager(cfg, sugar)
	config.NewLearningModule(cfg, mm)

	registry := providers.NewRegistry(cfg.DB())
	gitMgr := gitpkg.NewManager(sessionRoot)
	store := historystore.New(filepath.Join(sessionRoot, historyDirName))

	return &chatui.Engine{
		Cfg:         cfg,
		Modules:     mm,
		Registry:    registry,
		Git:         gitMgr,
		Log:         sugar,
		Store:       store,
		View:        view,
		ViewPath:    viewPath,
		SessionRoot: sessionRoot,
	}, nil
}

