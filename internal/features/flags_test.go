package features

import "testing"

func TestNewFeatureFlags(t *testing.T) {
	flags := NewFeatureFlags()
	if flags == nil {
		t.Fatal("NewFeatureFlags returned nil")
	}

	// All tools should be enabled by default
	if !flags.IsToolEnabled("read_file") {
		t.Error("read_file should be enabled by default")
	}
	if !flags.IsToolEnabled("unknown_tool") {
		t.Error("Unknown tools should be enabled by default")
	}
}

func TestEnableDisableTool(t *testing.T) {
	flags := NewFeatureFlags()

	flags.DisableTool("apply_diff")
	if flags.IsToolEnabled("apply_diff") {
		t.Error("apply_diff should be disabled after DisableTool")
	}

	// Other tools remain enabled
	if !flags.IsToolEnabled("write_to_file") {
		t.Error("write_to_file should still be enabled")
	}

	flags.EnableTool("apply_diff")
	if !flags.IsToolEnabled("apply_diff") {
		t.Error("apply_diff should be enabled after EnableTool")
	}
}

func TestUnknownToolIsNoOp(t *testing.T) {
	flags := NewFeatureFlags()

	flags.DisableTool("unknown_tool_xyz")
	if !flags.IsToolEnabled("unknown_tool_xyz") {
		t.Error("Unknown tool should still be enabled (no-op)")
	}
}

func TestExperiments(t *testing.T) {
	flags := NewFeatureFlags()

	if flags.IsExperimentEnabled("concurrentFileReads") {
		t.Error("unknown experiments should default to disabled")
	}

	flags.SetExperiment("concurrentFileReads", true)
	if !flags.IsExperimentEnabled("concurrentFileReads") {
		t.Error("experiment should be enabled after SetExperiment")
	}

	flags.SetExperiments(map[string]bool{"powerSteering": true})
	if flags.IsExperimentEnabled("concurrentFileReads") {
		t.Error("SetExperiments should replace the previous map")
	}
	if !flags.IsExperimentEnabled("powerSteering") {
		t.Error("powerSteering should be enabled from the new snapshot")
	}
}
