// Package main provides the coach binary entry point.
// Coach scores sales-call transcripts against versioned coaching rubrics
// using LLM analysis, with content-addressed result caching.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	// Register LLM providers via init()
	_ "github.com/c360studio/coach/llm/providers"

	"github.com/c360studio/coach/analysis"
	"github.com/c360studio/coach/cache"
	"github.com/c360studio/coach/config"
	"github.com/c360studio/coach/rubric"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "coach"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Sales-call coaching analysis engine",
		Long: `Coach analyzes sales-call transcripts against versioned coaching
rubrics. Each coaching dimension is scored independently by an LLM, validated
against a strict result schema, and cached under a content-addressed key so
identical transcript/rubric/role combinations never pay for a second model
call.

Rubrics live in YAML files and are hot-reloadable. Results can be cached in
memory or in a NATS JetStream key-value bucket, and completed analyses can be
published as NATS events for downstream consumers.`,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(analyzeCmd(flags))
	cmd.AddCommand(cacheCmd(flags))
	cmd.AddCommand(rubricsCmd(flags))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			cfg, err := loadConfig(flags.configPath, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Run(ctx); err != nil {
				return err
			}
			logger.Info("coach shutdown complete")
			return nil
		},
	}
}

func analyzeCmd(flags *rootFlags) *cobra.Command {
	var (
		transcriptPath string
		callID         string
		role           string
		dimensions     []string
		product        string
		force          bool
		noCache        bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a single transcript and print the JSON report",
		Long: `Analyze reads a transcript from a file (or stdin with "-"), scores it
against the active rubrics for the given role, and writes the report as JSON
to stdout. Cached dimension results are reused unless --force is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			cfg, err := loadConfig(flags.configPath, logger)
			if err != nil {
				return err
			}

			transcript, err := readTranscript(transcriptPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			req := &analysis.Request{
				Transcript:      transcript,
				CallID:          callID,
				Role:            rubric.Role(role),
				Product:         product,
				ForceReanalysis: force,
			}
			for _, d := range dimensions {
				req.Dimensions = append(req.Dimensions, rubric.Dimension(d))
			}
			if noCache {
				useCache := false
				req.UseCache = &useCache
			}

			report, err := app.Analyze(ctx, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "-", "Transcript file path, or - for stdin")
	cmd.Flags().StringVar(&callID, "call-id", "", "Call identifier for the report")
	cmd.Flags().StringVar(&role, "role", "", "Evaluator role (ae, se, csm); defaults from config")
	cmd.Flags().StringSliceVarP(&dimensions, "dimensions", "d", nil, "Dimensions to score; defaults from config")
	cmd.Flags().StringVar(&product, "product", "", "Product knowledge base to use for the product_knowledge dimension")
	cmd.Flags().BoolVar(&force, "force", false, "Skip cache reads and reanalyze every dimension")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip cache reads for this run")

	return cmd
}

func cacheCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Operate on the analysis result cache",
	}
	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheResetCmd())
	cmd.AddCommand(cacheInvalidateCmd(flags))
	return cmd
}

func cacheStatsCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print cache counters from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := httpJSON(cmd.Context(), http.MethodGet, serverURL+"/api/v1/cache/stats", nil)
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Coach server URL")
	return cmd
}

func cacheResetCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Zero the cache counters on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := httpJSON(cmd.Context(), http.MethodPost, serverURL+"/api/v1/cache/reset", nil); err != nil {
				return err
			}
			fmt.Println("Cache counters reset.")
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Coach server URL")
	return cmd
}

func httpJSON(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := (&http.Client{Timeout: 30 * time.Second}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func cacheInvalidateCmd(flags *rootFlags) *cobra.Command {
	var (
		role      string
		dimension string
		version   string
	)

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Delete cached results for a role/dimension pair",
		Long: `Invalidate removes cached results for a (role, dimension) pair,
optionally limited to one rubric version. This is an operator purge; routine
rubric updates do not need it because new versions produce new cache keys.

Requires the NATS cache backend. In-memory caches are per-process and reset
on restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			cfg, err := loadConfig(flags.configPath, logger)
			if err != nil {
				return err
			}
			if cfg.Cache.Backend != "nats" {
				return fmt.Errorf("cache invalidate requires the nats cache backend (configured: %q)", cfg.Cache.Backend)
			}

			r := rubric.ParseRole(role)
			if r == "" {
				return fmt.Errorf("invalid role: %q", role)
			}
			d := rubric.ParseDimension(dimension)
			if d == "" {
				return fmt.Errorf("invalid dimension: %q", dimension)
			}

			ctx := context.Background()
			store, err := cache.NewNATSStore(ctx, cfg.NATS.URL, cfg.Cache.TTL, cache.WithNATSLogger(logger))
			if err != nil {
				return wrapNATSError(err, cfg.NATS.URL)
			}
			defer store.Close()

			count, err := store.InvalidateDimension(ctx, r, d, version)
			if err != nil {
				return fmt.Errorf("invalidate: %w", err)
			}
			fmt.Printf("Invalidated %d cached result(s) for %s/%s", count, r, d)
			if version != "" {
				fmt.Printf(" version %s", version)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Evaluator role (required)")
	cmd.Flags().StringVar(&dimension, "dimension", "", "Dimension (required)")
	cmd.Flags().StringVar(&version, "rubric-version", "", "Limit the purge to one rubric version")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("dimension")

	return cmd
}

func rubricsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rubrics",
		Short: "Inspect loaded rubrics",
	}
	cmd.AddCommand(rubricsListCmd(flags))
	cmd.AddCommand(rubricsShowCmd(flags))
	return cmd
}

func rubricsListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active rubric versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			cfg, err := loadConfig(flags.configPath, logger)
			if err != nil {
				return err
			}

			registry, err := rubric.NewRegistry(cfg.Rubrics.Dir, rubric.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("load rubrics from %s: %w", cfg.Rubrics.Dir, err)
			}

			versions := registry.List()
			if len(versions) == 0 {
				fmt.Println("No rubrics loaded.")
				return nil
			}

			fmt.Printf("%-6s %-20s %-10s %-9s %s\n", "ROLE", "DIMENSION", "VERSION", "CRITERIA", "MAX SCORE")
			for _, v := range versions {
				fmt.Printf("%-6s %-20s %-10s %-9d %d\n", v.Role, v.Dimension, v.Version, len(v.Criteria), v.MaxScore())
			}
			return nil
		},
	}
}

func rubricsShowCmd(flags *rootFlags) *cobra.Command {
	var (
		role      string
		dimension string
		version   string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one rubric version as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			cfg, err := loadConfig(flags.configPath, logger)
			if err != nil {
				return err
			}

			registry, err := rubric.NewRegistry(cfg.Rubrics.Dir, rubric.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("load rubrics from %s: %w", cfg.Rubrics.Dir, err)
			}

			r := rubric.ParseRole(role)
			if r == "" {
				return fmt.Errorf("invalid role: %q", role)
			}
			d := rubric.ParseDimension(dimension)
			if d == "" {
				return fmt.Errorf("invalid dimension: %q", dimension)
			}

			var v *rubric.Version
			if version != "" {
				v, err = registry.Get(r, d, version)
			} else {
				v, err = registry.Active(r, d)
			}
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshal rubric: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Evaluator role (required)")
	cmd.Flags().StringVar(&dimension, "dimension", "", "Dimension (required)")
	cmd.Flags().StringVar(&version, "rubric-version", "", "Specific version; defaults to the active one")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("dimension")

	return cmd
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	} else {
		// Layered lookup: defaults, then user config, then project config.
		cfg, err = config.NewLoader(logger).Load()
		if err != nil {
			return nil, err
		}
	}

	// Environment variable override takes precedence
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		cfg.NATS.URL = envURL
	} else if envURL := os.Getenv("COACH_NATS_URL"); envURL != "" {
		cfg.NATS.URL = envURL
	}

	return cfg, nil
}

func readTranscript(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("transcript path required (use - for stdin)")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	transcript := strings.TrimSpace(string(data))
	if transcript == "" {
		return "", fmt.Errorf("transcript is empty")
	}
	return transcript, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set the nats.url config value (or NATS_URL) to point to your server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}
