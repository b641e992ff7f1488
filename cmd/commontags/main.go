// Command commontags prints the tags shared by the GitHub avatars of the
// given users, or serves the same search over HTTP with --serve.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garlicnation/commontags"
	"github.com/garlicnation/commontags/internal/config"
	"github.com/garlicnation/commontags/internal/logger"
	"github.com/garlicnation/commontags/internal/server"
	"github.com/garlicnation/commontags/profiles"
	"github.com/garlicnation/commontags/tagger"
)

func main() {
	serve := flag.Bool("serve", false, "run the HTTP server instead of a single search")
	envFile := flag.String("env-file", config.DefaultEnvFile, "dotenv file consulted before the environment")
	timeout := flag.Duration("timeout", 0, "bound a single search (0 means no limit)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: commontags [flags] handle...\n       commontags --serve\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*serve, *envFile, *timeout, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "commontags:", err)
		os.Exit(1)
	}
}

func run(serve bool, envFile string, timeout time.Duration, handles []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig(envFile)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Env)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	searcher := newSearcher(cfg, log)

	if serve {
		return runServer(ctx, cfg, log, searcher)
	}

	if len(handles) == 0 {
		flag.Usage()
		return errors.New("no handles given")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tags, err := searcher.SearchCommonTags(ctx, handles).Wait()
	if err != nil {
		return err
	}
	for _, tag := range tags {
		fmt.Println(tag)
	}
	return nil
}

func newSearcher(cfg *config.Config, log *zap.Logger) *commontags.Searcher {
	profileClient := profiles.New(profiles.Options{
		BaseURL:   cfg.GitHub.BaseURL,
		Token:     cfg.GitHub.Token,
		RateLimit: cfg.GitHub.RateLimit,
	})
	auth := tagger.NewAuthenticator(cfg.Tagger.TokenURL, cfg.Tagger.ClientID, cfg.Tagger.ClientSecret, nil, nil)
	tagClient := tagger.New(tagger.Options{
		BaseURL:       cfg.Tagger.BaseURL,
		Model:         cfg.Tagger.Model,
		MinConfidence: cfg.Tagger.MinConfidence,
		BatchSize:     cfg.Tagger.BatchSize,
		RateLimit:     cfg.Tagger.RateLimit,
	})
	return commontags.New(profileClient, auth, tagClient, commontags.WithLogger(log))
}

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger, searcher *commontags.Searcher) error {
	engine := server.NewEngine(server.NewHandler(searcher, log), log, cfg.HTTP.RequestTimeout)
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout), zap.Error(err))
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
