package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codefionn/agentloop/internal/approval"
	"github.com/codefionn/agentloop/internal/workspace"
)

type fakeRunner struct {
	output   string
	exitCode int
	lastCmd  string
	lastCwd  string
}

func (r *fakeRunner) Run(_ context.Context, command, cwd string) (string, int, error) {
	r.lastCmd = command
	r.lastCwd = cwd
	return r.output, r.exitCode, nil
}

func approveAll() approval.Gate {
	return approval.GateFunc(func(context.Context, approval.Request) (approval.Response, error) {
		return approval.Response{Approved: true}, nil
	})
}

func denyAll(feedback string) approval.Gate {
	return approval.GateFunc(func(context.Context, approval.Request) (approval.Response, error) {
		return approval.Response{Approved: false, Feedback: feedback}, nil
	})
}

func testDispatcher(t *testing.T, gate approval.Gate) (*Dispatcher, *TurnContext, string) {
	t.Helper()
	root := t.TempDir()
	guard, err := workspace.NewGuard(root, []string{"secrets/**"}, []string{".agentloop/**"})
	require.NoError(t, err)
	d := NewDispatcher(NewCatalog(), guard, &fakeRunner{output: "ok"}, nil, nil)
	tc := &TurnContext{Ctx: context.Background(), Gate: gate}
	return d, tc, root
}

func invoke(kind Kind, params map[string]interface{}) *Invocation {
	return &Invocation{Kind: kind, Name: kind.Name(), Params: params}
}

func TestDispatchMissingParameter(t *testing.T) {
	d, tc, _ := testDispatcher(t, approveAll())

	res := d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{}))
	require.NotNil(t, res.Err)
	require.Equal(t, ErrKindMissingParameter, res.Err.Kind)
	require.Equal(t, "path", res.Err.Param)
	require.True(t, res.Err.Kind.CountsAsMistake())
}

func TestDispatchRejectsPathOutsideWorkspace(t *testing.T) {
	d, tc, _ := testDispatcher(t, approveAll())

	for _, path := range []string{"../escape.txt", "/etc/passwd"} {
		res := d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{"path": path}))
		if res.Err == nil || res.Err.Kind != ErrKindAccessDenied {
			t.Fatalf("path %q: expected access denied, got %+v", path, res)
		}
	}
}

func TestDispatchRejectsIgnoredPath(t *testing.T) {
	d, tc, _ := testDispatcher(t, approveAll())

	res := d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{"path": "secrets/key.pem"}))
	require.NotNil(t, res.Err)
	require.Equal(t, ErrKindAccessDenied, res.Err.Kind)
	require.False(t, res.Err.Kind.CountsAsMistake())
}

func TestWriteToFileCreatesFile(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())

	res := d.Dispatch(tc, invoke(KindWriteToFile, map[string]interface{}{
		"path":    "notes/hello.txt",
		"content": "hello world\n",
	}))
	require.Nil(t, res.Err)
	require.True(t, res.DidEdit)

	data, err := os.ReadFile(filepath.Join(root, "notes", "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world\n", string(data))
}

func TestRejectionLeavesFileUntouched(t *testing.T) {
	d, tc, root := testDispatcher(t, denyAll("not like this"))

	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0644))

	res := d.Dispatch(tc, invoke(KindWriteToFile, map[string]interface{}{
		"path":    "a.txt",
		"content": "replaced",
	}))
	require.NotNil(t, res.Err)
	require.Equal(t, ErrKindApprovalDenied, res.Err.Kind)
	require.Contains(t, res.Err.Message, "not like this")
	require.False(t, res.DidEdit)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}

func TestCancellationDuringApprovalRevertsWrite(t *testing.T) {
	d, _, root := testDispatcher(t, nil)
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0644))

	// The user approves, but the task is cancelled while the gate is open;
	// the staged write must be rolled back.
	ctx, cancel := context.WithCancel(context.Background())
	tc := &TurnContext{
		Ctx: ctx,
		Gate: approval.GateFunc(func(context.Context, approval.Request) (approval.Response, error) {
			cancel()
			return approval.Response{Approved: true}, nil
		}),
	}

	res := d.Dispatch(tc, invoke(KindWriteToFile, map[string]interface{}{
		"path":    "a.txt",
		"content": "replaced",
	}))
	require.NotNil(t, res.Err)
	require.Equal(t, ErrKindExecution, res.Err.Kind)
	require.False(t, res.DidEdit)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}

func TestCancellationRevertRemovesCreatedFile(t *testing.T) {
	d, _, root := testDispatcher(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	tc := &TurnContext{
		Ctx: ctx,
		Gate: approval.GateFunc(func(context.Context, approval.Request) (approval.Response, error) {
			cancel()
			return approval.Response{Approved: true}, nil
		}),
	}

	res := d.Dispatch(tc, invoke(KindWriteToFile, map[string]interface{}{
		"path":    "fresh.txt",
		"content": "content",
	}))
	require.Equal(t, ErrKindExecution, res.Err.Kind)

	_, statErr := os.Stat(filepath.Join(root, "fresh.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRejectionOfNewFileLeavesNoFile(t *testing.T) {
	d, tc, root := testDispatcher(t, denyAll(""))

	res := d.Dispatch(tc, invoke(KindWriteToFile, map[string]interface{}{
		"path":    "fresh.txt",
		"content": "content",
	}))
	require.Equal(t, ErrKindApprovalDenied, res.Err.Kind)

	_, err := os.Stat(filepath.Join(root, "fresh.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestWriteProtectedPathDenied(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())

	dir := filepath.Join(root, ".agentloop")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("mode: code\n"), 0644))

	res := d.Dispatch(tc, invoke(KindWriteToFile, map[string]interface{}{
		"path":    ".agentloop/config.yaml",
		"content": "mode: yolo\n",
	}))
	require.Equal(t, ErrKindAccessDenied, res.Err.Kind)

	// Reading the same path is still allowed.
	res = d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{"path": ".agentloop/config.yaml"}))
	require.Nil(t, res.Err)
	require.Equal(t, "mode: code\n", res.Text)
}

func TestReadFileLineRanges(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())
	content := "one\ntwo\nthree\nfour\nfive\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "n.txt"), []byte(content), 0644))

	res := d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{
		"path":        "n.txt",
		"line_ranges": []string{"2-3"},
	}))
	require.Nil(t, res.Err)
	require.Equal(t, "2 | two\n3 | three\n", res.Text)

	res = d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{
		"path":        "n.txt",
		"line_ranges": []string{"3-2"},
	}))
	require.NotNil(t, res.Err)
	require.Equal(t, ErrKindValidation, res.Err.Kind)
}

func TestReadFileBatchApprovedOnce(t *testing.T) {
	d, _, root := testDispatcher(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("beta\n"), 0644))

	gateCalls := 0
	tc := &TurnContext{
		Ctx: context.Background(),
		Gate: approval.GateFunc(func(_ context.Context, req approval.Request) (approval.Response, error) {
			gateCalls++
			require.Contains(t, req.Preview, "a.txt")
			require.Contains(t, req.Preview, "b.txt")
			return approval.Response{Approved: true}, nil
		}),
	}

	res := d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{
		"path": []string{"a.txt", "b.txt"},
	}))
	require.Nil(t, res.Err)
	require.Equal(t, 1, gateCalls)
	require.Contains(t, res.Text, "alpha")
	require.Contains(t, res.Text, "beta")

	// One bad path in the batch denies the whole invocation before approval.
	res = d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{
		"path": []string{"a.txt", "../outside.txt"},
	}))
	require.Equal(t, ErrKindAccessDenied, res.Err.Kind)
	require.Equal(t, 1, gateCalls)
}

func TestInsertContent(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())
	target := filepath.Join(root, "list.txt")
	require.NoError(t, os.WriteFile(target, []byte("a\nb\nc"), 0644))

	tests := []struct {
		name string
		line interface{}
		want string
	}{
		{"before second line", "2", "a\nX\nb\nc"},
		{"append with zero", "0", "a\nb\nc\nX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(target, []byte("a\nb\nc"), 0644))
			res := d.Dispatch(tc, invoke(KindInsertContent, map[string]interface{}{
				"path":    "list.txt",
				"line":    tt.line,
				"content": "X",
			}))
			require.Nil(t, res.Err)
			data, err := os.ReadFile(target)
			require.NoError(t, err)
			require.Equal(t, tt.want, string(data))
		})
	}

	res := d.Dispatch(tc, invoke(KindInsertContent, map[string]interface{}{
		"path":    "list.txt",
		"line":    "99",
		"content": "X",
	}))
	require.Equal(t, ErrKindValidation, res.Err.Kind)
}

func TestApplyDiff(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())
	target := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n\nfunc main() {\n\tprintln(\"old\")\n}\n"), 0644))

	patch := "@@ -4,1 +4,1 @@\n-\tprintln(\"old\")\n+\tprintln(\"new\")\n"
	res := d.Dispatch(tc, invoke(KindApplyDiff, map[string]interface{}{
		"path": "main.go",
		"diff": patch,
	}))
	require.Nil(t, res.Err)
	require.True(t, res.DidEdit)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "package main\n\nfunc main() {\n\tprintln(\"new\")\n}\n", string(data))
}

func TestApplyDiffContextMismatch(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())
	target := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("line one\nline two\n"), 0644))

	patch := "@@ -1,1 +1,1 @@\n-something else\n+replacement\n"
	res := d.Dispatch(tc, invoke(KindApplyDiff, map[string]interface{}{
		"path": "main.go",
		"diff": patch,
	}))
	require.NotNil(t, res.Err)
	require.Equal(t, ErrKindValidation, res.Err.Kind)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two\n", string(data))
}

func TestExecuteCommand(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())
	runner := d.runner.(*fakeRunner)
	runner.output = "3 files\n"

	res := d.Dispatch(tc, invoke(KindExecuteCommand, map[string]interface{}{"command": "ls | wc -l"}))
	require.Nil(t, res.Err)
	require.Equal(t, "3 files", res.Text)
	require.Equal(t, "ls | wc -l", runner.lastCmd)
	require.Equal(t, root, runner.lastCwd)
}

func TestExecuteCommandNonZeroExitIsNotAnError(t *testing.T) {
	d, tc, _ := testDispatcher(t, approveAll())
	runner := d.runner.(*fakeRunner)
	runner.output = "boom"
	runner.exitCode = 2

	res := d.Dispatch(tc, invoke(KindExecuteCommand, map[string]interface{}{"command": "false"}))
	require.Nil(t, res.Err)
	require.Contains(t, res.Text, "exited with code 2")
}

func TestSearchFiles(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "secrets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.go"), []byte("func Hello() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "b.txt"), []byte("func in prose\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secrets", "c.go"), []byte("func Secret() {}\n"), 0644))

	res := d.Dispatch(tc, invoke(KindSearchFiles, map[string]interface{}{
		"path":         ".",
		"regex":        `func \w+`,
		"file_pattern": "*.go",
	}))
	require.Nil(t, res.Err)
	require.Contains(t, res.Text, "src/a.go:1: func Hello() {}")
	require.NotContains(t, res.Text, "b.txt")
	require.NotContains(t, res.Text, "secrets")
}

func TestSearchFilesBadRegex(t *testing.T) {
	d, tc, _ := testDispatcher(t, approveAll())

	res := d.Dispatch(tc, invoke(KindSearchFiles, map[string]interface{}{
		"path":  ".",
		"regex": "(",
	}))
	require.Equal(t, ErrKindValidation, res.Err.Kind)
}

func TestListFiles(t *testing.T) {
	d, tc, root := testDispatcher(t, approveAll())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "secrets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "sub", "deep.txt"), nil, 0644))

	res := d.Dispatch(tc, invoke(KindListFiles, map[string]interface{}{"path": "."}))
	require.Nil(t, res.Err)
	require.Contains(t, res.Text, "pkg/")
	require.Contains(t, res.Text, "top.txt")
	require.NotContains(t, res.Text, "deep.txt")
	require.NotContains(t, res.Text, "secrets")

	res = d.Dispatch(tc, invoke(KindListFiles, map[string]interface{}{
		"path":      ".",
		"recursive": "true",
	}))
	require.Nil(t, res.Err)
	require.Contains(t, res.Text, "pkg/sub/deep.txt")
}

func TestYoloSkipsGateButNotForProtected(t *testing.T) {
	d, _, root := testDispatcher(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("v1"), 0644))

	gateCalls := 0
	tc := &TurnContext{
		Ctx: context.Background(),
		Gate: approval.GateFunc(func(context.Context, approval.Request) (approval.Response, error) {
			gateCalls++
			return approval.Response{Approved: false}, nil
		}),
		YoloMode:  true,
		Protected: map[string]bool{ToolNameExecuteCommand: true},
	}

	res := d.Dispatch(tc, invoke(KindWriteToFile, map[string]interface{}{
		"path":    "x.txt",
		"content": "v2",
	}))
	require.Nil(t, res.Err)
	require.Equal(t, 0, gateCalls)

	res = d.Dispatch(tc, invoke(KindExecuteCommand, map[string]interface{}{"command": "rm -rf /"}))
	require.Equal(t, ErrKindApprovalDenied, res.Err.Kind)
	require.Equal(t, 1, gateCalls)
}

func TestAskFollowupQuestionRelaysAnswer(t *testing.T) {
	d, _, _ := testDispatcher(t, nil)
	tc := &TurnContext{
		Ctx: context.Background(),
		Gate: approval.GateFunc(func(_ context.Context, req approval.Request) (approval.Response, error) {
			require.Contains(t, req.Preview, "Which database?")
			return approval.Response{Approved: true, Feedback: "sqlite"}, nil
		}),
		// Even yolo mode must wait for the human here.
		YoloMode: true,
	}

	res := d.Dispatch(tc, invoke(KindAskFollowupQuestion, map[string]interface{}{
		"question": "Which database?",
	}))
	require.Nil(t, res.Err)
	require.Contains(t, res.Text, "sqlite")
}

func TestUsageRecordedOnSuccessOnly(t *testing.T) {
	d, _, root := testDispatcher(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0644))

	used := make(map[string]int)
	tc := &TurnContext{
		Ctx:   context.Background(),
		Gate:  approveAll(),
		Usage: func(toolName string) { used[toolName]++ },
	}

	res := d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{"path": "a.txt"}))
	require.Nil(t, res.Err)
	require.Equal(t, map[string]int{ToolNameReadFile: 1}, used)

	// Failures record nothing.
	res = d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{}))
	require.NotNil(t, res.Err)
	res = d.Dispatch(tc, invoke(KindReadFile, map[string]interface{}{"path": "../out.txt"}))
	require.NotNil(t, res.Err)
	require.Equal(t, map[string]int{ToolNameReadFile: 1}, used)
}

func TestAttemptCompletionMarksCompleted(t *testing.T) {
	d, tc, _ := testDispatcher(t, approveAll())

	res := d.Dispatch(tc, invoke(KindAttemptCompletion, map[string]interface{}{
		"result": "All tests pass.",
	}))
	require.Nil(t, res.Err)
	require.True(t, res.Completed)
	require.Equal(t, "All tests pass.", res.Text)
}

func TestSwitchModeAndNewTaskRequests(t *testing.T) {
	d, tc, _ := testDispatcher(t, approveAll())

	res := d.Dispatch(tc, invoke(KindSwitchMode, map[string]interface{}{
		"mode_slug": "architect",
		"reason":    "needs a plan first",
	}))
	require.Nil(t, res.Err)
	require.Equal(t, "architect", res.SwitchToMode)

	res = d.Dispatch(tc, invoke(KindNewTask, map[string]interface{}{
		"message": "write the docs",
		"mode":    "ask",
	}))
	require.Nil(t, res.Err)
	require.NotNil(t, res.Spawn)
	require.Equal(t, "ask", res.Spawn.Mode)
	require.Equal(t, "write the docs", res.Spawn.Message)
}
