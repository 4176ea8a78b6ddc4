package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	"wikirag_web/config"
	"wikirag_web/mcpserver"
	"wikirag_web/models"
	"wikirag_web/server"
	"wikirag_web/wikirag"
)

const (
	ProgramName = "wikirag-web"
	Version     = "v0.1.0"
)

type serveCmd struct {
	Addr string `arg:"--addr" help:"http listen address (overrides server_addr)"`
}

type askCmd struct {
	Question string `arg:"positional" help:"question to ask; read from stdin when empty"`
	Model    string `arg:"--model,-m" help:"model identifier (default from config)"`
	Pages    string `arg:"--pages,-p" help:"number of wikipedia pages (default from config)"`
}

type mcpCmd struct{}

type args struct {
	Serve   *serveCmd `arg:"subcommand:serve" help:"start the web server"`
	Ask     *askCmd   `arg:"subcommand:ask" help:"ask one question and print the answer"`
	MCP     *mcpCmd   `arg:"subcommand:mcp" help:"serve the ask_wiki tool over MCP stdio"`
	Config  string    `arg:"--config,-c,env:WIKIRAG_WEB_CONFIG" help:"path to config.yaml"`
	Verbose bool      `arg:"-v" help:"enable debug logs"`
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", ProgramName, Version)
}

func main() {
	var a args
	p, err := arg.NewParser(arg.Config{Program: ProgramName}, &a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad argument definition: %v\n", err)
		os.Exit(2)
	}
	p.MustParse(os.Args[1:])
	if p.Subcommand() == nil {
		p.WriteUsage(os.Stdout)
		os.Exit(0)
	}

	cfg, err := config.Load(a.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := newLogger(cfg, a.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	client, err := wikirag.NewClient(buildRunner(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("build wikirag client")
	}

	switch cmd := p.Subcommand().(type) {
	case *serveCmd:
		err = runServe(ctx, cfg, cmd, client, log)
	case *askCmd:
		err = runAsk(ctx, cfg, cmd, client, os.Stdin, os.Stdout)
	case *mcpCmd:
		log.Info().Msg("serving MCP on stdio")
		err = mcpserver.Run(ctx, client, cfg.Defaults)
	default:
		p.FailSubcommand("unrecognized command", p.SubcommandNames()...)
	}
	if err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

// newLogger writes to stderr so stdout stays clean for ask output and MCP.
func newLogger(cfg config.Config, verbose bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	var out io.Writer = os.Stderr
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func buildRunner(cfg config.Config) wikirag.Runner {
	if cfg.Tool.Mock {
		return wikirag.MockRunner{}
	}
	return wikirag.NewInvoker(cfg.Tool.Command,
		wikirag.WithArgs(cfg.Tool.Args...),
		wikirag.WithTimeout(cfg.Tool.Timeout()),
		wikirag.WithWaitDelay(cfg.Tool.WaitDelay()),
	)
}

func buildCatalog(cfg config.Config, log zerolog.Logger) *models.Catalog {
	var lister models.Lister
	if cfg.Models.BaseURL != "" {
		l, err := models.NewOpenAILister(cfg.Models.BaseURL, cfg.Models.APIKey)
		if err != nil {
			log.Warn().Err(err).Msg("model discovery disabled")
		} else {
			lister = l
		}
	}
	return models.NewCatalog(lister, cfg.Models.Choices, cfg.Defaults.Model, cfg.Models.CacheTTL())
}

func runServe(ctx context.Context, cfg config.Config, cmd *serveCmd, client *wikirag.Client, log zerolog.Logger) error {
	srv, err := server.New(client, buildCatalog(cfg, log), cfg, log)
	if err != nil {
		return err
	}
	listen := cfg.ServerAddr
	if cmd.Addr != "" {
		listen = cmd.Addr
	}
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listen).Str("tool", cfg.Tool.Command).Msg("starting web server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	grace := cfg.Tool.Timeout()
	if grace == 0 {
		grace = config.DefaultTimeoutSeconds * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runAsk(ctx context.Context, cfg config.Config, cmd *askCmd, client *wikirag.Client, stdin io.Reader, stdout io.Writer) error {
	question := cmd.Question
	if question == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read question: %w", err)
		}
		question = strings.TrimRight(string(data), "\r\n")
	}
	q := wikirag.Query{Question: question, Model: cmd.Model, Pages: cmd.Pages}
	if q.Model == "" {
		q.Model = cfg.Defaults.Model
	}
	if q.Pages == "" {
		q.Pages = cfg.Defaults.Pages
	}

	ans, err := client.Ask(ctx, q)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, ans.Text)
	if !strings.HasSuffix(ans.Text, "\n") {
		fmt.Fprintln(stdout)
	}
	if len(ans.References) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Links:")
		for _, ref := range ans.References {
			fmt.Fprintf(stdout, "  %s\n", ref)
		}
	}
	return nil
}
