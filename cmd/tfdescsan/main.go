package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matijazezelj/tfdescsan/internal/alert"
	"github.com/matijazezelj/tfdescsan/internal/config"
	"github.com/matijazezelj/tfdescsan/internal/history"
	"github.com/matijazezelj/tfdescsan/internal/mapping"
	"github.com/matijazezelj/tfdescsan/internal/patch"
	"github.com/matijazezelj/tfdescsan/internal/report"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	cfgFile   string
	logFormat string
	logLevel  string
	logger    = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

func main() {
	root := &cobra.Command{
		Use:   "tfdescsan",
		Short: "tfdescsan — Terraform variable description sanitizer",
		Long:  "Reconcile variable and output descriptions in Terraform files against a canonical mapping table.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			opts := &slog.HandlerOptions{Level: level}
			switch logFormat {
			case "json":
				logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
			case "text":
				logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
			default:
				return fmt.Errorf("invalid --log-format %q (use: text, json)", logFormat)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./tfdescsan.yaml)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		checkCmd(),
		patchCmd(),
		historyCmd(),
		versionCmd(),
		completionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runInputs holds everything a check or patch run needs after flag and
// config resolution.
type runInputs struct {
	cfg     *config.Config
	table   *mapping.Table
	cloud   mapping.Cloud
	source  string
	varFile string
	text    string
}

// loadInputs resolves the mapping source and cloud (flag wins over config),
// loads the table, and reads the declaration file. Any failure here is fatal:
// nothing has been patched or written yet.
func loadInputs(ctx context.Context, varFile, tsvFlag, cloudFlag string) (*runInputs, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	source := tsvFlag
	if source == "" {
		source = cfg.Mapping.Path
	}
	if source == "" {
		return nil, fmt.Errorf("no mapping table given (use --tsv or set mapping.path in config)")
	}

	cloudName := cloudFlag
	if cloudName == "" {
		cloudName = cfg.Mapping.Cloud
	}
	cloud, err := mapping.ParseCloud(cloudName)
	if err != nil {
		return nil, err
	}

	table, err := mapping.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	logger.Debug("mapping loaded", "source", source, "entries", table.Len())

	data, err := os.ReadFile(varFile) // #nosec G304 -- path from user CLI arg
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", varFile, err)
	}

	return &runInputs{
		cfg:     cfg,
		table:   table,
		cloud:   cloud,
		source:  source,
		varFile: varFile,
		text:    string(data),
	}, nil
}

// --- check ---

func checkCmd() *cobra.Command {
	var tsvPath, cloudName, format string

	cmd := &cobra.Command{
		Use:   "check <variables.tf>",
		Short: "Verify descriptions against the mapping without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInputs(cmd.Context(), args[0], tsvPath, cloudName)
			if err != nil {
				return err
			}

			r := patch.Apply(in.table, in.text, in.cloud)

			rep := report.New(in.varFile, string(in.cloud), r.Discrepancies)
			if err := report.Render(os.Stdout, rep, format); err != nil {
				return err
			}

			notifyMissing(cmd.Context(), in.cfg, in.varFile, r.Discrepancies)
			recordRun(cmd.Context(), in, "check", r.Discrepancies)

			if len(r.Discrepancies) > 0 {
				return fmt.Errorf("%d discrepancies in %s", len(r.Discrepancies), in.varFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tsvPath, "tsv", "t", "", "description mapping table (path or URL)")
	cmd.Flags().StringVarP(&cloudName, "cloud", "c", "", "cloud appendix to apply (aws, gcp, azure)")
	cmd.Flags().StringVar(&format, "format", "text", "report format (text, json, yaml)")
	return cmd
}

// --- patch ---

func patchCmd() *cobra.Command {
	var tsvPath, cloudName, outPath string
	var inplace bool

	cmd := &cobra.Command{
		Use:   "patch <variables.tf>",
		Short: "Rewrite descriptions to match the mapping",
		Long: `Rewrite variable and output descriptions to match the mapping table.

The patched file goes to stdout unless --out or --inplace is given.
Blocks with no mapping entry are reported and left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInputs(cmd.Context(), args[0], tsvPath, cloudName)
			if err != nil {
				return err
			}

			r := patch.Apply(in.table, in.text, in.cloud)

			for _, d := range r.Discrepancies {
				logger.Warn(d.Message(), "variable", d.Variable, "kind", string(d.Kind), "line", d.Line)
			}

			mode := "patch"
			switch {
			case inplace:
				mode = "inplace"
				if !r.Changed {
					logger.Info("no changes, skipping write", "file", in.varFile)
					break
				}
				if err := patch.WriteFile(in.varFile, r.Text); err != nil {
					return err
				}
				logger.Info("patched in place", "file", in.varFile)
			case outPath != "":
				if err := patch.WriteFile(outPath, r.Text); err != nil {
					return err
				}
				logger.Info("patched file written", "file", outPath)
			default:
				fmt.Print(r.Text)
			}

			notifyMissing(cmd.Context(), in.cfg, in.varFile, r.Discrepancies)
			recordRun(cmd.Context(), in, mode, r.Discrepancies)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tsvPath, "tsv", "t", "", "description mapping table (path or URL)")
	cmd.Flags().StringVarP(&cloudName, "cloud", "c", "", "cloud appendix to apply (aws, gcp, azure)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write patched output to this path")
	cmd.Flags().BoolVarP(&inplace, "inplace", "i", false, "replace the input file in place")
	cmd.MarkFlagsMutuallyExclusive("out", "inplace")
	return cmd
}

// notifyMissing sends an alert event for every variable that has no mapping
// entry, mirroring the check/patch output channels configured in the config
// file. Alert failures are logged, never fatal.
func notifyMissing(ctx context.Context, cfg *config.Config, varFile string, ds []patch.Discrepancy) {
	var alerters []alert.Alerter
	if cfg.Alerts.Stdout.Enabled {
		alerters = append(alerters, alert.NewStdoutAlerter())
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		headers := make(map[string]string, len(cfg.Alerts.Webhook.Headers))
		for k, v := range cfg.Alerts.Webhook.Headers {
			headers[k] = os.ExpandEnv(v)
		}
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alerts.Webhook.URL, headers, cfg.Alerts.Webhook.EventsPerSecond))
	}
	if len(alerters) == 0 {
		return
	}
	multi := alert.NewMulti(alerters...)

	for _, d := range ds {
		if d.Kind != patch.KindMissingMapping {
			continue
		}
		event := alert.Event{
			Source:    "tfdescsan",
			EventType: "description_discrepancy",
			Severity:  "warning",
			Finding: alert.Finding{
				File:     varFile,
				Variable: d.Variable,
				Kind:     string(d.Kind),
				Line:     d.Line,
			},
			Message:   d.Message(),
			Timestamp: time.Now(),
		}
		if err := multi.Send(ctx, event); err != nil {
			logger.Warn("sending alert", "variable", d.Variable, "error", err)
		}
	}
}

// recordRun stores the run in the history database when history is enabled.
func recordRun(ctx context.Context, in *runInputs, mode string, ds []patch.Discrepancy) {
	if !in.cfg.History.Enabled {
		return
	}

	store, err := history.Open(in.cfg.History.Path)
	if err != nil {
		logger.Warn("opening history database", "error", err)
		return
	}
	defer store.Close() //nolint:errcheck // best-effort cleanup

	if err := store.Init(ctx); err != nil {
		logger.Warn("initializing history database", "error", err)
		return
	}

	id, err := store.RecordRun(ctx, history.Run{
		VarFile:       in.varFile,
		MappingSource: in.source,
		Cloud:         string(in.cloud),
		Mode:          mode,
		StartedAt:     time.Now(),
		Status:        "running",
	})
	if err != nil {
		logger.Warn("recording run", "error", err)
		return
	}

	status := "clean"
	if len(ds) > 0 {
		status = "discrepancies"
	}
	counts := patch.CountByKind(ds)
	if err := store.FinishRun(ctx, id, status,
		counts[patch.KindMissingMapping],
		counts[patch.KindTextMismatch],
		counts[patch.KindMissingDescription],
		counts[patch.KindUnsupported]); err != nil {
		logger.Warn("finishing run record", "error", err)
	}
}

// --- history ---

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			if err := store.Init(cmd.Context()); err != nil {
				return err
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded. Enable history in the config to start recording.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSTARTED\tFILE\tMODE\tCLOUD\tDISCREPANCIES\tSTATUS")
			for _, r := range runs {
				cloud := r.Cloud
				if cloud == "" {
					cloud = "-"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.VarFile, r.Mode, cloud, r.Total(), r.Status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

// --- version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("tfdescsan %s\n", version)
		},
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (use: debug, info, warn, error)", s)
	}
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for tfdescsan.

To load completions:

Bash:
  $ source <(tfdescsan completion bash)

Zsh:
  $ tfdescsan completion zsh > "${fpath[1]}/_tfdescsan"

Fish:
  $ tfdescsan completion fish | source

PowerShell:
  PS> tfdescsan completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
