package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codefionn/agentloop/internal/approval"
	"github.com/codefionn/agentloop/internal/config"
	"github.com/codefionn/agentloop/internal/mode"
	"github.com/codefionn/agentloop/internal/task"
	"github.com/codefionn/agentloop/internal/tools"
	"github.com/codefionn/agentloop/internal/workspace"
)

func TestLoadScript(t *testing.T) {
	sc, err := loadScript("testdata/demo.yaml")
	require.NoError(t, err)
	require.Len(t, sc.Turns, 3)
	require.True(t, sc.Settings.YoloMode)
	require.Equal(t, "code", sc.Settings.Mode)
}

func TestLoadScriptMissingFile(t *testing.T) {
	_, err := loadScript("testdata/nope.yaml")
	require.Error(t, err)
}

func TestMergeSettings(t *testing.T) {
	base := config.Settings{Mode: "code", ProviderID: "anthropic", MistakeLimit: 3}
	override := config.Settings{Mode: "ask", YoloMode: true}

	merged := mergeSettings(base, override)
	require.Equal(t, "ask", merged.Mode)
	require.Equal(t, "anthropic", merged.ProviderID)
	require.Equal(t, 3, merged.MistakeLimit)
	require.True(t, merged.YoloMode)
}

func TestSlogBridgeWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := newLogger("debug", path)
	require.NoError(t, err)
	defer log.Close()

	newSlogLogger(log).Info("turn finished", "tool", "read_file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "turn finished")
	require.Contains(t, string(data), "tool=read_file")
}

func TestScriptedReplayRunsToCompletion(t *testing.T) {
	sc, err := loadScript("testdata/demo.yaml")
	require.NoError(t, err)

	root := t.TempDir()
	guard, err := workspace.NewGuard(root, nil, nil)
	require.NoError(t, err)

	catalog := tools.NewCatalog()
	loop := task.NewLoop(task.Options{
		Settings:   sc.Settings,
		Catalog:    catalog,
		Modes:      mode.NewRegistry(nil),
		Dispatcher: tools.NewDispatcher(catalog, guard, nil, nil, nil),
		Gate:       approval.DenyAll{},
	})

	var last task.Status
	for _, turn := range sc.Turns {
		last, err = loop.HandleModelTurn(context.Background(), toTurn(turn))
		require.NoError(t, err)
	}
	require.Equal(t, task.StateCompleted, last.State)
	require.True(t, loop.DidEditFile())
}
