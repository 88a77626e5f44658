package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/rollcall/internal/bot"
	"github.com/lazypower/rollcall/internal/engine"
	"github.com/lazypower/rollcall/internal/server"
	"github.com/lazypower/rollcall/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot: poll Telegram, sweep daily, serve health checks",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := newTelegramClient(ctx, cfg)
	if err != nil {
		return err
	}
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("check bot token: %w", err)
	}
	logger.Info("bot connected", "username", me.Username, "id", me.ID)

	eng, err := engine.New(st, client, cfg.Moderation, logger)
	if err != nil {
		return err
	}

	srv := server.New(st, cfg.Database.Driver, eng.Thresholds(), VersionString(), cfg.Server.APIToken)
	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	poller := telegram.NewPoller(client, bot.NewHandler(eng, client, logger), cfg.Telegram.PollTimeout, logger)

	g, gctx := errgroup.WithContext(ctx)

	eng.StartSweepTimer(gctx)
	defer eng.Stop()

	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("rollcall serving", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
