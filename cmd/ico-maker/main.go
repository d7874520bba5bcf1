package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ico-maker-go/internal/config"
	"ico-maker-go/internal/converter"
	"ico-maker-go/internal/icon"
	"ico-maker-go/internal/logger"
	"ico-maker-go/internal/probe"
	"ico-maker-go/internal/report"
	"ico-maker-go/internal/statistics"
	"ico-maker-go/internal/watch"
	"ico-maker-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	outputDir      string
	baseName       string
	sizeFlags      []string
	filterBySource bool
	workers        int
	dryRun         bool
	reportPath     string
	useExiftool    bool
	verbose        bool
	quiet          bool
	port           int
)

// errConversionFailed marks a batch where at least one image failed.
var errConversionFailed = errors.New("conversion failed")

// rootCmd converts images into multi-resolution .ico files.
var rootCmd = &cobra.Command{
	Use:   "ico-maker [images or directories...]",
	Short: "Convert images into multi-resolution Windows icons",
	Long: `ico-maker converts images into .ico files that contain one frame per
selected icon size.

Features:
- Sizes from 16x16 up to 128x128, any combination in one icon
- Skips sizes larger than the source image (configurable)
- Batch conversion of files and whole directories
- Optional shared base name for a single output icon
- Dry-run preview and YAML reports
- Hot folder and web interface modes`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args)
	},
}

// sizesCmd prints the size catalog.
var sizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "List the icon sizes that can be selected",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSizes()
	},
}

// inspectCmd shows what the prober knows about an image.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show image dimensions and the sizes it would produce",
	Long: `Inspects an image and prints its format, dimensions and EXIF orientation,
followed by the icon sizes a conversion would write for it.
This is useful for understanding why a size was skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts a web server with a graphical interface for ico-maker.
The web interface allows you to:
- Browse directories and pick images
- Choose icon sizes
- Follow conversions in real time

Access the interface at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// watchCmd converts images dropped into a folder.
var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Convert every image that appears in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory for .ico files")
	rootCmd.PersistentFlags().StringSliceVar(&sizeFlags, "sizes", nil, "icon sizes, e.g. 16,32,48x48 (default: all)")
	rootCmd.PersistentFlags().BoolVar(&filterBySource, "filter-by-source", true, "skip sizes larger than the source image")

	rootCmd.Flags().StringVar(&baseName, "name", "", "shared output name; every image writes to <name>.ico")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel conversions (default from config)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be written without writing")
	rootCmd.Flags().StringVar(&reportPath, "report", "", "write a YAML report to this file")

	inspectCmd.Flags().BoolVar(&useExiftool, "exiftool", false, "read metadata with the exiftool binary")
	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")

	rootCmd.AddCommand(sizesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

// runConvert executes a batch conversion.
func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if baseName != "" {
		cfg.BaseName = baseName
	}
	if workers > 0 {
		cfg.Performance.WorkerThreads = workers
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	prober := probe.NewImageProber(log, cfg.SupportedExtensions)
	engine := converter.NewEngine(cfg.ConverterOptions(), log, stats, converter.NewICOEncoder(), prober)

	req := converter.Request{
		Images: converter.CollectImages(args, cfg.SupportedExtensions),
		Target: cfg.Target(),
		Sizes:  cfg.SizeSelection(),
	}
	if err := converter.ValidateInputs(req.Images, req.Target.Directory, req.Sizes); err != nil {
		return err
	}

	if dryRun {
		return printPlan(engine, req)
	}

	if err := os.MkdirAll(req.Target.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := engine.ConvertBatch(ctx, req)
	if err != nil {
		return err
	}

	for _, r := range results {
		msg := report.FileMessage(r)
		if msg.Level == report.LevelError {
			fmt.Fprintln(os.Stderr, msg.Text)
		} else if !quiet {
			fmt.Println(msg.Text)
		}
	}

	summary := report.Summary(results)
	if !quiet {
		fmt.Println("\n" + summary.Text)
		fmt.Println("\n" + stats.GetSummary())
		if len(stats.GetErrors()) > 0 {
			fmt.Println("\n" + stats.GetErrorSummary())
		}
	}

	if reportPath != "" {
		if err := report.WriteYAML(reportPath, results); err != nil {
			return err
		}
		log.Infof("Report written to %s", reportPath)
	}

	if summary.Level == report.LevelError {
		return errConversionFailed
	}
	return nil
}

func printPlan(engine *converter.Engine, req converter.Request) error {
	entries, err := engine.Plan(req)
	if err != nil {
		return err
	}

	fmt.Println("DRY RUN: no files will be written")
	failed := 0
	for _, e := range entries {
		if e.Err != nil {
			failed++
			fmt.Printf("  %s: %v\n", e.InputPath, e.Err)
			continue
		}
		fmt.Printf("  %s (%dx%d) -> %s [%s]\n", e.InputPath, e.Width, e.Height, e.OutputPath, e.Sizes)
	}
	if failed > 0 {
		return errConversionFailed
	}
	return nil
}

// runSizes prints the catalog and the configured default selection.
func runSizes() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	selected := make(map[icon.Size]bool)
	for _, s := range cfg.SizeSelection() {
		selected[s] = true
	}
	for _, s := range icon.Catalog() {
		mark := " "
		if selected[s] {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, s)
	}
	fmt.Println("\n* selected by default")
	return nil
}

// runInspect prints metadata for one image.
func runInspect(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	var prober probe.Prober = probe.NewImageProber(log, cfg.SupportedExtensions)
	if useExiftool {
		et, err := probe.NewExiftoolProber(log, cfg.SupportedExtensions)
		if err != nil {
			return err
		}
		defer et.Close()
		prober = et
	}

	fmt.Printf("Inspecting: %s\n", filePath)
	md, err := prober.Probe(filePath)
	if err != nil {
		fmt.Printf("Error reading image: %v\n", err)
		return nil
	}

	w, h := md.Width, md.Height
	if cfg.Conversion.AutoOrient {
		w, h = md.OrientedSize()
	}

	fmt.Printf("Format:      %s\n", md.Format)
	fmt.Printf("Dimensions:  %dx%d\n", md.Width, md.Height)
	fmt.Printf("Orientation: %s\n", md.OrientationLabel())
	if md.Camera != "" {
		fmt.Printf("Camera:      %s\n", md.Camera)
	}
	if md.Software != "" {
		fmt.Printf("Software:    %s\n", md.Software)
	}
	fmt.Printf("Read with:   %s\n", md.Source)
	fmt.Printf("Icon sizes:  %s\n", icon.Resolve(cfg.SizeSelection(), w, h, cfg.Conversion.FilterBySource))
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if port > 0 {
		cfg.Web.Port = port
	}

	log := setupLogger(cfg)
	prober := probe.NewImageProber(log, cfg.SupportedExtensions)
	server := web.NewServer(cfg, log, prober, converter.NewICOEncoder())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(cfg.Web.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("ico-maker web interface started\n")
	fmt.Printf("Open your browser and go to: http://localhost:%d\n", cfg.Web.Port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// runWatch converts images dropped into dir until interrupted.
func runWatch(cmd *cobra.Command, dir string) error {
	if !dirExists(dir) {
		return fmt.Errorf("watch directory does not exist: %s", dir)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	prober := probe.NewImageProber(log, cfg.SupportedExtensions)
	engine := converter.NewEngine(cfg.ConverterOptions(), log, stats, converter.NewICOEncoder(), prober)

	target := cfg.Target()
	if target.Directory != "" {
		if err := os.MkdirAll(target.Directory, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	w, err := watch.NewWatcher(dir, target, cfg.SizeSelection(), cfg.SupportedExtensions, cfg.Watch.Debounce, engine, log)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("Watching %s, press Ctrl+C to stop\n", dir)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			msg := report.FileMessage(ev.Result)
			if msg.Level == report.LevelError {
				fmt.Fprintln(os.Stderr, msg.Text)
			} else if !quiet {
				fmt.Println(msg.Text)
			}
		case <-sigChan:
			fmt.Println("\nStopping watcher...")
			if err := w.Stop(); err != nil {
				return fmt.Errorf("watcher shutdown failed: %w", err)
			}
			return nil
		}
	}
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	}
	if sizeFlags != nil {
		if _, err := icon.ParseSizes(sizeFlags); err != nil {
			return nil, err
		}
		cfg.Sizes = sizeFlags
	}
	if cmd.Flags().Changed("filter-by-source") {
		cfg.Conversion.FilterBySource = filterBySource
	}

	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      logger.LevelFor(cfg.Logging.Level, verbose, quiet),
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errConversionFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
