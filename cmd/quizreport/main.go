package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/quizreport/internal/handler"
	appI18n "github.com/pavelanni/quizreport/internal/i18n"
	"github.com/pavelanni/quizreport/internal/llm"
	"github.com/pavelanni/quizreport/internal/llm/prompts"
	"github.com/pavelanni/quizreport/internal/model"
	"github.com/pavelanni/quizreport/internal/report"
	"github.com/pavelanni/quizreport/internal/telegram"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "quizreport",
		Short:        "Quiz submission service that relays results to Telegram",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, renderCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizreport --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP submission server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.Bool("cors", true, "Enable CORS on the submit endpoint")
	f.Int64("max-body", 1<<20, "Maximum request body size in bytes")
	addReportFlags(f)
	addTelegramFlags(f)
	addLLMFlags(f)
	addLogFlags(f)
	return cmd
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a submission file as a report",
		RunE:  runRender,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "-", "Submission JSON file (- for stdin)")
	f.Bool("send", false, "Send the report to Telegram after rendering")
	addReportFlags(f)
	addTelegramFlags(f)
	addLLMFlags(f)
	addLogFlags(f)
	return cmd
}

func addReportFlags(f *pflag.FlagSet) {
	f.StringP("lang", "l", "en", "Report language (en, ru)")
	f.String("report-title", "", "Report title (default: localised)")
	f.Int("sample-size", 5, "Questions listed in the report (negative = all)")
	f.Float64("weak-threshold", report.DefaultWeakThreshold, "Sections below this ratio are flagged as weak")
	f.String("timezone", "", "IANA time zone for report timestamps (default: local)")
}

func addTelegramFlags(f *pflag.FlagSet) {
	f.String("telegram-token", "", "Telegram bot token (or TELEGRAM_BOT_TOKEN)")
	f.String("telegram-chat-id", "", "Telegram chat id (or TELEGRAM_CHAT_ID)")
	f.String("telegram-api-url", telegram.DefaultAPIURL, "Telegram Bot API base URL")
	f.Duration("telegram-timeout", telegram.DefaultTimeout, "Timeout for a single Telegram API call")
	f.Int("chunk-size", telegram.DefaultChunkLimit, "Maximum message length in UTF-16 units")
	f.Duration("send-interval", telegram.DefaultSendInterval, "Pause between consecutive messages")
}

func addLLMFlags(f *pflag.FlagSet) {
	f.String("llm-url", "", "OpenAI-compatible API base URL for study advice")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "", "LLM model name (empty disables generated advice)")
	f.String("prompt-variant", string(prompts.PromptStandard), "Advice prompt variant (strict, standard, encouraging)")
	f.Duration("llm-timeout", 20*time.Second, "Timeout for a single LLM call")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Bare TELEGRAM_* variables are honoured as well.
	_ = v.BindEnv("telegram-token", "QUIZREPORT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram-chat-id", "QUIZREPORT_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	v.SetConfigName("quizreport")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizreport")
	v.AddConfigPath("/etc/quizreport")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// app is the set of components shared by serve and render.
type app struct {
	lang     string
	builder  *report.Builder
	notifier *telegram.Notifier // nil when credentials are missing
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	loc := time.Local
	if tz := v.GetString("timezone"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}

	var tiers []model.Tier
	if err := v.UnmarshalKey("tiers", &tiers); err != nil {
		return nil, fmt.Errorf("parse tiers: %w", err)
	}

	var advisor report.Advisor
	if name := v.GetString("llm-model"); name != "" {
		client, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), name, llm.Options{
			Variant:  strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant"))),
			Language: lang,
			Timeout:  v.GetDuration("llm-timeout"),
		})
		if err != nil {
			return nil, fmt.Errorf("create LLM client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			slog.Warn("LLM health check failed, using built-in recommendations", "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", name)
			advisor = client
		}
	}

	builder := report.NewBuilder(model.ReportConfig{
		Title:         v.GetString("report-title"),
		SampleSize:    v.GetInt("sample-size"),
		WeakThreshold: v.GetFloat64("weak-threshold"),
		Tiers:         tiers,
		Location:      loc,
	}, advisor)

	notifier, err := telegram.New(telegram.Config{
		Token:        v.GetString("telegram-token"),
		ChatID:       v.GetString("telegram-chat-id"),
		APIURL:       v.GetString("telegram-api-url"),
		ChunkLimit:   v.GetInt("chunk-size"),
		SendInterval: v.GetDuration("send-interval"),
		Timeout:      v.GetDuration("telegram-timeout"),
	})
	switch {
	case errors.Is(err, telegram.ErrMissingCredentials):
		slog.Warn("telegram credentials not configured, reports will not be sent")
		notifier = nil
	case err != nil:
		return nil, fmt.Errorf("create telegram notifier: %w", err)
	}

	return &app{lang: lang, builder: builder, notifier: notifier}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}

	// A nil *telegram.Notifier must reach the handler as a nil interface.
	var notifier handler.Notifier
	if a.notifier != nil {
		if err := a.notifier.Ping(ctx); err != nil {
			slog.Warn("telegram health check failed", "error", err)
		}
		notifier = a.notifier
	}

	h, err := handler.New(a.builder, notifier, model.ServerConfig{
		CORSEnabled: v.GetBool("cors"),
		CORSOrigins: v.GetStringSlice("cors-origins"),
		MaxBodySize: v.GetInt64("max-body"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(a.lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("starting server",
		"addr", addr,
		"lang", a.lang,
		"telegram", a.notifier != nil,
		"llm_model", v.GetString("llm-model"),
		"chunk_size", v.GetInt("chunk-size"),
		"send_interval", v.GetDuration("send-interval"),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runRender(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if path := v.GetString("file"); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open submission: %w", err)
		}
		defer f.Close()
		in = f
	}

	dec, err := handler.NewDecoder()
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	sub, err := dec.Decode(in)
	if err != nil {
		return fmt.Errorf("invalid submission: %w", err)
	}

	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(a.lang))
	analysis := a.builder.Analyze(sub)
	text := a.builder.Build(ctx, sub, analysis, time.Now())
	if _, err := fmt.Fprint(cmd.OutOrStdout(), text); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !v.GetBool("send") {
		return nil
	}
	if a.notifier == nil {
		return telegram.ErrMissingCredentials
	}
	res := a.notifier.Notify(ctx, text)
	if !res.OK() {
		return fmt.Errorf("send report (%d of %d chunks delivered): %w", res.Sent, res.Chunks, res.Err)
	}
	slog.Info("report sent", "chunks", res.Chunks)
	return nil
}
