// Package main provides the CLI entrypoint for codetype.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/verte-zerg/codetype/internal/config"
	"github.com/verte-zerg/codetype/internal/logging"
	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/source"
	"github.com/verte-zerg/codetype/internal/stats"
	"github.com/verte-zerg/codetype/internal/statsui"
	"github.com/verte-zerg/codetype/internal/store"
	"github.com/verte-zerg/codetype/internal/tui"
)

const (
	defaultWeakTop     = 8
	defaultWeakWindow  = 20
	defaultCurveWindow = 20
	defaultMaxRetries  = 2
	defaultStatsWidth  = 80
)

var (
	practiceModel     string
	practiceBaseURL   string
	practiceProvider  string
	practiceFocusWeak bool
	practiceDebug     bool

	statsLabel       string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "codetype [prompt...]",
		Short:         "Typing trainer for generated code",
		Long:          "Describe the code you want to type; codetype asks a model for it and checks every keystroke.",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.ArbitraryArgs,
		RunE:          runPracticeCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&practiceModel, "model", source.DefaultModel, "model name")
	flags.StringVar(&practiceBaseURL, "base-url", "", "OpenAI-compatible endpoint")
	flags.StringVar(&practiceProvider, "provider", config.ProviderOpenAI, "snippet source (openai or file)")
	flags.BoolVar(&practiceFocusWeak, "focus-weak", false, "ask for code rich in your most-missed characters")
	flags.BoolVar(&practiceDebug, "debug", false, "debug logging")

	rootCmd.AddCommand(newFileCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	provider, err := newProvider(cfg, a.log)
	if err != nil {
		return err
	}
	return runTUI(tui.Options{
		Config:   cfg,
		Store:    a.store,
		Provider: provider,
		Logger:   a.log,
		Prompt:   strings.Join(args, " "),
	})
}

func newFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>...",
		Short: "Practice local files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFileCmd,
	}
}

func runFileCmd(cmd *cobra.Command, args []string) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	provider := source.FileProvider{}
	snippets, err := provider.Generate(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	return runTUI(tui.Options{
		Config:   cfg,
		Store:    a.store,
		Provider: provider,
		Logger:   a.log,
		Prompt:   strings.Join(args, " "),
		Snippets: snippets,
	})
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <id>",
		Short: "Practice a stored snippet again",
		Long:  "Practice the snippet of a past run. The id is the numeric run id or a prefix of the run uuid shown by stats.",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	if err := requireTerminal(); err != nil {
		return err
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	run, err := a.store.GetRun(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return fmt.Errorf("no run matches %q", args[0])
		}
		return fmt.Errorf("failed to load run: %w", err)
	}

	// Replaying works offline; a new prompt then reports the missing source.
	provider, err := newProvider(cfg, a.log)
	if err != nil {
		a.log.Infow("replay without snippet source", "error", err)
	}
	return runTUI(tui.Options{
		Config:   cfg,
		Store:    a.store,
		Provider: provider,
		Logger:   a.log,
		Prompt:   run.Prompt,
		Snippets: []source.Snippet{{Label: run.Label, Text: run.Snippet}},
	})
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsLabel, "label", "", "snippet label filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print the report instead of opening the stats UI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	statsCfg, err := statsConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if !statsPlain && term.IsTerminal(int(os.Stdout.Fd())) {
		program := tea.NewProgram(statsui.NewModel(st, statsCfg), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats UI: %w", err)
		}
		return nil
	}

	report, err := stats.BuildReport(cmd.Context(), st, statsCfg)
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), terminalWidth())
}

func statsConfig() (model.StatsConfig, error) {
	var since *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		since = &parsed
	}
	if statsLast < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return model.StatsConfig{}, fmt.Errorf("--curve-window must be >= 1")
	}
	return model.StatsConfig{
		Label:       statsLabel,
		Since:       since,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}, nil
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultStatsWidth
	}
	return width
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// loadSettings resolves defaults, the config file, the environment and
// finally the flags the user set explicitly.
func loadSettings(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv(".env")
	if err != nil {
		return model.Config{}, err
	}
	cfg, err := config.Resolve(defaultConfig(), fileCfg, envCfg)
	if err != nil {
		return model.Config{}, err
	}
	applyStringFlag(cmd, "model", &cfg.Model, practiceModel)
	applyStringFlag(cmd, "base-url", &cfg.BaseURL, practiceBaseURL)
	applyStringFlag(cmd, "provider", &cfg.Provider, strings.ToLower(practiceProvider))
	applyBoolFlag(cmd, "focus-weak", &cfg.FocusWeak, practiceFocusWeak)
	applyBoolFlag(cmd, "debug", &cfg.Debug, practiceDebug)

	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func defaultConfig() model.Config {
	return model.Config{
		Provider:       config.ProviderOpenAI,
		Model:          source.DefaultModel,
		Temperature:    source.DefaultTemperature,
		TopP:           source.DefaultTopP,
		MaxTokens:      source.DefaultMaxTokens,
		MaxRetries:     defaultMaxRetries,
		Timeout:        source.DefaultTimeout,
		PromptTemplate: source.DefaultTemplate,
		WeakTop:        defaultWeakTop,
		WeakWindow:     defaultWeakWindow,
	}
}

func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyBoolFlag(cmd *cobra.Command, name string, target *bool, value bool) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func validateConfig(cfg model.Config) error {
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderFile:
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", cfg.Provider, config.ProviderOpenAI, config.ProviderFile)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		return fmt.Errorf("top-p must be in (0, 1]")
	}
	if cfg.MaxTokens <= 0 {
		return fmt.Errorf("max-tokens must be > 0")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max-retries must be >= 0")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("weak-top must be >= 0")
	}
	if cfg.WeakWindow < 0 {
		return fmt.Errorf("weak-window must be >= 0")
	}
	return nil
}

func newProvider(cfg model.Config, log *zap.SugaredLogger) (source.Provider, error) {
	if cfg.Provider == config.ProviderFile {
		return source.FileProvider{}, nil
	}
	p, err := source.NewOpenAIProvider(source.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   int64(cfg.MaxTokens),
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
	}, source.PromptBuilder{Template: cfg.PromptTemplate}, log)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type app struct {
	log      *zap.SugaredLogger
	closeLog func()
	store    *store.Store
}

func openApp(cfg model.Config) (*app, error) {
	log, closeLog, err := logging.New(config.DefaultLogPath(), cfg.Debug)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	log.Debugw("started", "provider", cfg.Provider, "model", cfg.Model, "base_url", cfg.BaseURL)
	return &app{log: log, closeLog: closeLog, store: st}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Errorw("failed to close db", "error", err)
	}
	a.closeLog()
}

func runTUI(opts tui.Options) error {
	program := tea.NewProgram(tui.NewModel(opts), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func requireTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("codetype needs an interactive terminal")
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# codetype configuration
# Uncomment a value to enable it. Environment variables and CLI flags
# override config values. The API key is read from CODETYPE_API_KEY,
# OPENAI_API_KEY or GEMINI_API_KEY (a .env file in the working directory works too).

[generator]
# provider = %q          # openai or file
# model = %q             # Model name
# base-url = ""          # OpenAI-compatible endpoint, e.g. %q
# temperature = %.1f       # Sampling temperature
# top-p = %.1f             # Nucleus sampling
# max-tokens = %d        # Response size limit
# max-retries = %d          # Retries on transient failures
# timeout = %q           # Request timeout
# prompt-template = %q

[practice]
# focus-weak = false      # Ask for code rich in your most-missed characters
# weak-top = %d            # Number of weak characters to focus on
# weak-window = %d        # Number of recent runs to compute weak chars
`,
		config.ProviderOpenAI,
		source.DefaultModel,
		config.GeminiBaseURL,
		source.DefaultTemperature,
		source.DefaultTopP,
		source.DefaultMaxTokens,
		defaultMaxRetries,
		source.DefaultTimeout.String(),
		source.DefaultTemplate,
		defaultWeakTop,
		defaultWeakWindow,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
