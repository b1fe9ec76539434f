package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"zebra-emulator/internal/config"
	"zebra-emulator/internal/domain"
	"zebra-emulator/internal/http/server"
	"zebra-emulator/internal/infra/chrome"
	"zebra-emulator/internal/infra/logging"
	"zebra-emulator/internal/infra/ratelimit"
	"zebra-emulator/internal/preview"
	"zebra-emulator/internal/render"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flagValues struct {
	width       float64
	height      float64
	port        int
	iface       string
	dpi         string
	preview     string
	renderer    string
	command     string
	commandArgs []string
	labelaryURL string
	configPath  string
	logLevel    string
}

func newRootCommand() *cobra.Command {
	var fv flagValues
	cmd := &cobra.Command{
		Use:           "zebra-emulator",
		Short:         "Emulate a Zebra network printer and preview the labels it receives",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), fv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	bindFlags(cmd.Flags(), &fv)
	return cmd
}

func bindFlags(f *pflag.FlagSet, fv *flagValues) {
	f.Float64VarP(&fv.width, "width", "x", 2.25, "label width in inches")
	f.Float64VarP(&fv.height, "height", "y", 1.25, "label height in inches")
	f.IntVarP(&fv.port, "port", "p", 8080, "port to listen on")
	f.StringVarP(&fv.iface, "interface", "i", "127.0.0.1", "interface to bind")
	f.StringVar(&fv.dpi, "dpi", "203", "printer resolution: 152, 203, 300, 600 (or 6dpmm, 8dpmm, 12dpmm, 24dpmm)")
	f.StringVar(&fv.preview, "preview", config.PreviewFile, "preview strategy (file, window)")
	f.StringVar(&fv.renderer, "renderer", config.BackendCommand, "render backend (command, labelary)")
	f.StringVar(&fv.command, "render-command", config.DefaultRenderCommand, "rasteriser binary for the command backend")
	f.StringArrayVar(&fv.commandArgs, "render-arg", nil, "argument for the rasteriser, repeatable; {width} {height} {dpi} {dpmm} are expanded")
	f.StringVar(&fv.labelaryURL, "labelary-url", render.DefaultLabelaryURL, "base URL of a Labelary compatible API")
	f.StringVar(&fv.configPath, "config", "", "YAML config file (defaults to $CONFIG_PATH)")
	f.StringVar(&fv.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads the config file, overlays the flags the user set and
// validates the result once.
func loadConfig(flags *pflag.FlagSet, fv flagValues) (config.Config, error) {
	cfg, err := config.Read(config.Path(fv.configPath))
	if err != nil {
		return config.Config{}, err
	}
	if err := applyFlags(flags, fv, &cfg); err != nil {
		return config.Config{}, err
	}
	if cfg.Preview.Window.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.Preview.Window.ChromePath = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyFlags(flags *pflag.FlagSet, fv flagValues, cfg *config.Config) error {
	if flags.Changed("width") {
		cfg.Label.WidthIn = fv.width
	}
	if flags.Changed("height") {
		cfg.Label.HeightIn = fv.height
	}
	if flags.Changed("port") {
		cfg.Server.Port = fv.port
	}
	if flags.Changed("interface") {
		cfg.Server.Interface = fv.iface
	}
	if flags.Changed("dpi") {
		r, err := domain.ParseResolution(fv.dpi)
		if err != nil {
			return fmt.Errorf("--dpi: %w", err)
		}
		cfg.Label.DPI = int(r)
	}
	if flags.Changed("preview") {
		cfg.Preview.Strategy = fv.preview
	}
	if flags.Changed("renderer") {
		cfg.Render.Backend = fv.renderer
	}
	if flags.Changed("render-command") {
		cfg.Render.Command.Path = fv.command
	}
	if flags.Changed("render-arg") {
		cfg.Render.Command.Args = fv.commandArgs
	}
	if flags.Changed("labelary-url") {
		cfg.Render.Labelary.BaseURL = fv.labelaryURL
	}
	if flags.Changed("log-level") {
		cfg.Logger.Level = fv.logLevel
	}
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	sink, closeSink := buildSink(cfg)
	var store fiber.Storage
	if cfg.RateLimiter.Enabled {
		store = ratelimit.NewStore(ratelimit.RedisConfig{
			Addr: cfg.RateLimiter.RedisHost,
			DB:   cfg.RateLimiter.RedisDB,
		})
	}

	renderer := buildRenderer(cfg)
	checkRenderer(renderer, cfg)
	app, _, err := server.New(server.Deps{
		Config:       cfg,
		Renderer:     renderer,
		Sink:         sink,
		LimiterStore: store,
	})
	if err != nil {
		closeSink()
		return err
	}

	ln, err := listen(cfg.ListenAddr())
	if err != nil {
		closeSink()
		if store != nil {
			_ = store.Close()
		}
		logging.Error("Failed to bind", "addr", cfg.ListenAddr(), "error", err)
		return err
	}

	canvas, _ := cfg.Canvas()
	logging.Info("Printer emulator listening",
		"addr", ln.Addr().String(),
		"canvas", canvas.String(),
		"renderer", renderer.Name(),
		"preview", sink.Name(),
	)
	return startServer(ctx, app, ln, closeSink)
}

func listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return ln, nil
}

func buildRenderer(cfg config.Config) render.Renderer {
	if cfg.Render.Backend == config.BackendCommand {
		return render.NewCommand(cfg.Render.Command.Path, cfg.Render.Command.Args)
	}
	return render.NewLabelary(cfg.Render.Labelary.BaseURL)
}

// checkRenderer warns at startup about a backend that cannot work or that
// sends labels off the machine.
func checkRenderer(r render.Renderer, cfg config.Config) {
	switch b := r.(type) {
	case *render.Command:
		if err := b.Available(); err != nil {
			logging.Warn("Local rasteriser not found, labels will fail until it is installed",
				"command", cfg.Render.Command.Path, "error", err)
		}
	case *render.Labelary:
		logging.Warn("Labels are sent to a remote renderer", "base_url", cfg.Render.Labelary.BaseURL)
		if strings.HasPrefix(cfg.Render.Labelary.BaseURL, "http://") {
			logging.Warn("Remote renderer is not using TLS", "base_url", cfg.Render.Labelary.BaseURL)
		}
	}
}

func buildSink(cfg config.Config) (preview.Sink, func()) {
	if cfg.Preview.Strategy == config.PreviewWindow {
		wc := cfg.Preview.Window
		w := preview.NewWindow(
			chrome.NewOpener(chrome.Options{
				ExecPath:    wc.ChromePath,
				NoSandbox:   wc.NoSandbox,
				Headless:    wc.Headless,
				UserDataDir: wc.UserDataDir,
			}),
			preview.WindowOptions{
				Scale:        wc.Scale,
				PollInterval: wc.PollInterval,
				OpenTimeout:  wc.OpenTimeout,
			},
		)
		return w, w.Close
	}

	fc := cfg.Preview.File
	opts := preview.FileOptions{Dir: fc.Dir, Name: fc.Name, PerRequest: fc.PerRequest}
	if fc.OpenViewer {
		opts.Launch = preview.SystemViewer
	}
	return preview.NewFile(opts), func() {}
}

// startServer serves on ln until ctx ends, then shuts down gracefully.
func startServer(ctx context.Context, app *fiber.App, ln net.Listener, onShutdown func()) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listener(ln)
	}()

	select {
	case err := <-serveErr:
		onShutdown()
		if err != nil {
			logging.Error("Server error", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	logging.Warn("Shutdown signal received, closing server...")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(sctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}
	onShutdown()
	logging.Info("Server stopped cleanly")
	return nil
}
