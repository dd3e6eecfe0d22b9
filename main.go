package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"doc-translator/internal/config"
	"doc-translator/internal/errors"
	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

var (
	configPath string
	logLevel   string
	verbose    bool
	noColor    bool
)

var (
	translateOpts TranslateParams
	jsonOutput    bool
	serveAddr     string
	exportPath    string
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.Faint)
)

var rootCmd = &cobra.Command{
	Use:   "doc-translator",
	Short: "Translate PDF, Office and image documents into reviewable segments",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var translateCmd = &cobra.Command{
	Use:   "translate <path-or-url>",
	Short: "Translate one document",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranslate,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP intake server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs <orderId>",
	Short: "List stored jobs of an order",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobs,
}

var failuresCmd = &cobra.Command{
	Use:   "failures [orderId]",
	Short: "List failed jobs from the failure ledger",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFailures,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to the config file (default ~/.config/doc-translator/"+config.DefaultConfigFileName+")")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Also write logs to stderr")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")

	tf := translateCmd.Flags()
	tf.StringVar(&translateOpts.TargetLanguage, "to", "", "Target language code (required)")
	tf.StringVar(&translateOpts.SourceLanguage, "from", types.AutoLanguage, "Source language code")
	tf.StringVar((*string)(&translateOpts.Provider), "provider", string(types.ProviderOpenRouter), "Backend: google, openai, anthropic, openrouter")
	tf.StringVar((*string)(&translateOpts.Domain), "domain", string(types.DomainGeneral), "Domain: general, legal, medical, technical, certificate")
	tf.StringVar(&translateOpts.Model, "model", "", "Model override for the openrouter backend")
	tf.StringVar((*string)(&translateOpts.OCRQuality), "ocr-quality", string(types.OCRLow), "OCR quality: low or high")
	tf.StringVar(&translateOpts.OrderID, "order", "", "Order id (generated when empty)")
	tf.BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	translateCmd.MarkFlagRequired("to")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")

	jobsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	failuresCmd.Flags().StringVar(&exportPath, "export", "", "Write retryable failure ids to this file")

	rootCmd.AddCommand(translateCmd, serveCmd, jobsCmd, failuresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openApp loads .env and the config, initialises logging and starts the App.
func openApp() (*App, error) {
	config.LoadDotEnv()

	app, err := NewAppWithConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg := app.config.GetConfig()

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(level)
	logCfg.EnableConsole = verbose
	if cfg.LogFile != "" {
		logCfg.LogFilePath = cfg.LogFile
	}
	if err := logger.Init(logCfg); err != nil {
		warnColor.Fprintf(os.Stderr, "logging disabled: %v\n", err)
	}

	if err := app.startup(); err != nil {
		logger.Close()
		return nil, err
	}
	return app, nil
}

func closeApp(app *App) {
	app.shutdown()
	logger.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, cancel := signalContext()
	defer cancel()

	if !jsonOutput {
		titleColor.Printf("Translating %s → %s\n", args[0], translateOpts.TargetLanguage)
	}
	start := time.Now()
	job, err := app.TranslateFile(ctx, args[0], translateOpts)
	if err != nil {
		printFailure(err)
		return err
	}

	if jsonOutput {
		return printJSON(job)
	}
	okColor.Printf("✓ %d segments ready for review (order %s, %s)\n",
		len(job.Segments), job.OrderID, time.Since(start).Round(time.Millisecond))
	for _, seg := range job.Segments {
		label := fmt.Sprintf("#%d", seg.Order+1)
		if seg.PageNumber != nil {
			label = fmt.Sprintf("%s p.%d", label, *seg.PageNumber)
		}
		dimColor.Println(label)
		fmt.Println(seg.TranslatedText)
		fmt.Println()
	}
	return nil
}

func printFailure(err error) {
	errColor.Fprintf(os.Stderr, "✗ translation failed [%s]\n", types.CategoryOf(err))
	switch types.CategoryOf(err) {
	case types.CategoryTimeout:
		warnColor.Fprintln(os.Stderr, "  the provider timed out; raise timeout_ms or try a faster model")
	case types.CategoryModelUnavailable:
		warnColor.Fprintln(os.Stderr, "  the model is unavailable; try another provider or model")
	case types.CategoryConfiguration:
		warnColor.Fprintln(os.Stderr, "  check provider credentials in the config file or environment")
	case types.CategoryUnsupportedFile:
		warnColor.Fprintln(os.Stderr, "  supported: PDF, DOCX, XLSX, PNG, JPEG, WebP, GIF, BMP, TIFF")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	titleColor.Printf("Listening on %s\n", serveAddr)
	logger.Info("http server started", logger.String("addr", serveAddr))

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runJobs(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(app)

	list, err := app.ListJobs(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(list)
	}
	if len(list) == 0 {
		warnColor.Printf("No jobs for order %s\n", args[0])
		return nil
	}
	titleColor.Printf("Order %s\n", args[0])
	for _, job := range list {
		c := okColor
		if job.Status == types.StatusPending {
			c = warnColor
		}
		c.Printf("  %-30s %-11s %3d%%  %d segments\n", job.FileName, job.Status, job.Progress, len(job.Segments))
		if job.LastError != "" {
			dimColor.Printf("    last error (%s): %s\n", job.ErrorCategory, job.LastError)
		}
	}
	return nil
}

func runFailures(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(app)

	if exportPath != "" {
		if err := app.ExportFailures(exportPath); err != nil {
			return err
		}
		okColor.Printf("Exported retryable failures to %s\n", exportPath)
		return nil
	}

	orderID := ""
	if len(args) == 1 {
		orderID = args[0]
	}
	records := app.Failures(orderID)
	if len(records) == 0 {
		okColor.Println("No failures recorded")
		return nil
	}
	for _, rec := range records {
		retry := "retryable"
		if !rec.CanRetry {
			retry = "not retryable"
		}
		errColor.Printf("%s\n", rec.ID)
		fmt.Printf("  stage: %s, category: %s, %s, retries: %d\n",
			errors.GetStageDisplayName(rec.Stage), rec.Category, retry, rec.RetryCount)
		dimColor.Printf("  %s  %s\n", rec.Timestamp.Format(time.RFC3339), rec.ErrorMsg)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
