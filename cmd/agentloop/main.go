// agentloop replays a scripted model transcript through the task loop
// against a scratch workspace. It exists to exercise the orchestration end to
// end without a live provider: each script turn stands in for one model
// response, and tool effects land in the real filesystem under -workspace.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/codefionn/agentloop/internal/approval"
	"github.com/codefionn/agentloop/internal/config"
	"github.com/codefionn/agentloop/internal/logger"
	"github.com/codefionn/agentloop/internal/mode"
	"github.com/codefionn/agentloop/internal/protocol"
	"github.com/codefionn/agentloop/internal/task"
	"github.com/codefionn/agentloop/internal/tools"
	"github.com/codefionn/agentloop/internal/transcript"
	"github.com/codefionn/agentloop/internal/workspace"
)

// scriptTurn is one recorded model response. Either free text (XML tool
// syntax) or a structured native call.
type scriptTurn struct {
	Text   string `yaml:"text"`
	Native *struct {
		ID        string                 `yaml:"id"`
		Name      string                 `yaml:"name"`
		Arguments map[string]interface{} `yaml:"arguments"`
	} `yaml:"native"`
}

type script struct {
	Task     string          `yaml:"task"`
	Settings config.Settings `yaml:"settings"`
	Turns    []scriptTurn    `yaml:"turns"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		scriptPath = flag.String("script", "", "YAML script of model turns to replay")
		wsPath     = flag.String("workspace", ".", "workspace root the tools operate on")
		configPath = flag.String("config", "", "optional configuration file")
		yolo       = flag.Bool("yolo", false, "auto-approve non-protected operations")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		logPath    = flag.String("log-path", "", "log file path (logging off when empty)")
	)
	flag.Parse()

	if *scriptPath == "" {
		flag.Usage()
		return fmt.Errorf("-script is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "" && *logLevel == "info" {
		*logLevel = cfg.LogLevel
	}
	if cfg.LogPath != "" && *logPath == "" {
		*logPath = cfg.LogPath
	}

	log, err := newLogger(*logLevel, *logPath)
	if err != nil {
		return err
	}
	defer log.Close()
	slog.SetDefault(newSlogLogger(log))

	sc, err := loadScript(*scriptPath)
	if err != nil {
		return err
	}

	settings := mergeSettings(cfg.Settings, sc.Settings)
	if *yolo {
		settings.YoloMode = true
	}
	if settings.Mode == "" {
		settings.Mode = mode.DefaultSlug
	}

	guard, err := workspace.NewGuard(*wsPath, cfg.IgnoreRules, nil)
	if err != nil {
		return err
	}

	catalog := tools.NewCatalog()
	dispatcher := tools.NewDispatcher(catalog, guard, &tools.ExecRunner{}, nil, log)

	loop := task.NewLoop(task.Options{
		Settings:   settings,
		Policy:     cfg.Approval,
		Catalog:    catalog,
		Modes:      mode.NewRegistry(cfg.CustomModes),
		Dispatcher: dispatcher,
		Gate:       &consoleGate{in: bufio.NewReader(os.Stdin)},
		Log:        log,
		Progress: func(text string) {
			fmt.Printf("  ... %s\n", text)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sc.Task != "" {
		loop.Transcript().AppendText(transcript.RoleUser, sc.Task)
		fmt.Printf("task: %s\n", sc.Task)
	}

	for i, turn := range sc.Turns {
		fmt.Printf("\n--- turn %d ---\n", i+1)
		status, err := loop.HandleModelTurn(ctx, toTurn(turn))
		if errors.Is(err, task.ErrTaskFinished) {
			break
		}
		if err != nil {
			return err
		}
		printStatus(status)
		if status.State.Terminal() {
			break
		}
	}

	fmt.Printf("\nfinal state: %s (mistakes=%d, edited=%v)\n",
		loop.State(), loop.ConsecutiveMistakes(), loop.DidEditFile())
	return nil
}

func newLogger(level, path string) (*logger.Logger, error) {
	return logger.New(logger.ParseLevel(level), path, "agentloop")
}

// newSlogLogger bridges slog-based libraries into the run's log file: the
// process-wide slog default forwards to the same sink as everything else.
func newSlogLogger(log *logger.Logger) *slog.Logger {
	return slog.New(logger.NewSlogHandler(log))
}

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var sc script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(sc.Turns) == 0 {
		return nil, fmt.Errorf("script contains no turns")
	}
	return &sc, nil
}

// mergeSettings lets the script override the config file where it says
// anything at all.
func mergeSettings(base, override config.Settings) config.Settings {
	out := base
	if override.Mode != "" {
		out.Mode = override.Mode
	}
	if override.ProviderID != "" {
		out.ProviderID = override.ProviderID
	}
	if override.Experiments != nil {
		out.Experiments = override.Experiments
	}
	if override.MistakeLimit != 0 {
		out.MistakeLimit = override.MistakeLimit
	}
	out.YoloMode = out.YoloMode || override.YoloMode
	out.DiffEnabled = out.DiffEnabled || override.DiffEnabled
	out.SupportsImages = out.SupportsImages || override.SupportsImages
	out.CodebaseIndexReady = out.CodebaseIndexReady || override.CodebaseIndexReady
	return out
}

func toTurn(st scriptTurn) task.Turn {
	turn := task.Turn{Text: st.Text}
	if st.Native != nil {
		turn.Native = &protocol.NativeCall{
			ID:        st.Native.ID,
			Name:      st.Native.Name,
			Arguments: st.Native.Arguments,
		}
	}
	return turn
}

func printStatus(status task.Status) {
	if status.Result == nil {
		return
	}
	if status.Result.Err != nil {
		fmt.Printf("  [%s] %s\n", status.Result.Err.Kind, status.Result.Text)
		return
	}
	fmt.Printf("  %s\n", indent(status.Result.Text, "  "))
	fmt.Printf("  (context: %d tokens)\n", status.ContextTokens)
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}

// consoleGate asks for approval on stdin: y approves, n denies, anything
// else is taken as denial feedback for the model.
type consoleGate struct {
	in *bufio.Reader
}

func (g *consoleGate) RequestApproval(ctx context.Context, req approval.Request) (approval.Response, error) {
	if err := ctx.Err(); err != nil {
		return approval.Response{}, err
	}
	fmt.Printf("\n%s wants to run:\n%s\n", req.ToolName, indent(req.Preview, "  "))
	if req.Protected {
		fmt.Println("(protected operation)")
	}
	fmt.Print("approve? [y/n/feedback]: ")

	line, err := g.in.ReadString('\n')
	if err != nil {
		return approval.Response{}, fmt.Errorf("failed to read approval: %w", err)
	}
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "y", "yes", "":
		return approval.Response{Approved: true}, nil
	case "n", "no":
		return approval.Response{Approved: false}, nil
	default:
		return approval.Response{Approved: false, Feedback: line}, nil
	}
}
