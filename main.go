package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leetbot/bot"
	"leetbot/caching"
	"leetbot/config"
	"leetbot/debrid"
	"leetbot/logging"
	"leetbot/scrapers"
	"leetbot/telegraph"
)

const shutdownTimeout = 15 * time.Second

func init() {
	// Force pure Go DNS resolver (no CGO)
	net.DefaultResolver.PreferGo = true
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leetbot",
		Short:         "Telegram bot that searches 1337x",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to a config file (default ./leetbot.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("webhook-url", "", "receive updates on this HTTPS URL instead of long polling")
	flags.String("port", "", "port the webhook server listens on")
	flags.String("cache-path", "", "file the 1337x page cache is persisted to")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				fmt.Fprintln(os.Stderr, "❌", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	})

	return root
}

func run(ctx context.Context, cfg config.Config) error {
	restore, err := logging.Install(cfg.Debug)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer restore()
	log := zap.S()

	fmt.Println("===========================================")
	fmt.Println("  leetbot: 1337x search for Telegram")
	fmt.Println("===========================================")
	fmt.Println()

	if err := tgbotapi.SetLogger(logging.NewBotLogger(zap.L())); err != nil {
		return errors.Wrap(err, "set telegram logger")
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return errors.Wrap(err, "connect to telegram")
	}
	api.Debug = cfg.Debug
	log.Infof("✅ Authorized on account @%s", api.Self.UserName)

	pageCache := caching.NewCache(caching.Options{Path: cfg.LeetxCachePath})
	sessionCache := caching.NewCache(caching.Options{})
	defer func() {
		pageCache.Close()
		sessionCache.Close()
		log.Infof("💾 Flushing caches to disk... %v", pageCache.GetStats())
		if err := pageCache.Flush(); err != nil {
			log.Warnf("⚠️ Cache flush failed: %v", err)
		}
	}()
	log.Infof("✅ Caching system initialized (pages: %s, TTL %v)", cachePathOrMemory(cfg.LeetxCachePath), cfg.LeetxCacheTTL)

	var mirrorer bot.Mirrorer
	if cfg.MirrorEnabled() {
		mirrorer = debrid.NewClient(debrid.Config{
			Username: cfg.SeedrUsername,
			Password: cfg.SeedrPassword,
		})
		log.Info("✅ Seedr mirroring enabled")
	} else {
		log.Info("⚠️ Seedr credentials missing, mirroring disabled")
	}

	router := bot.NewRouter(bot.Options{
		Messenger: api,
		Searcher:  scrapers.NewLeetxScraper(cfg.LeetxBaseURL, pageCache, cfg.LeetxCacheTTL),
		Publisher: telegraph.NewClient(telegraph.Config{
			ShortName:   cfg.TelegraphShortName,
			AccessToken: cfg.TelegraphAccessToken,
		}),
		Mirrorer:       mirrorer,
		Sessions:       bot.NewSessionStore(sessionCache, cfg.SessionTTL),
		HandlerTimeout: cfg.HandlerTimeout,
	})

	if cfg.WebhookURL != "" {
		err = runWebhook(ctx, api, router, cfg)
	} else {
		err = runPolling(ctx, api, router)
	}
	if err != nil {
		return err
	}

	log.Info("✅ Graceful shutdown complete")
	return nil
}

func runPolling(ctx context.Context, api *tgbotapi.BotAPI, router *bot.Router) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return errors.Wrap(err, "delete webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	fmt.Println("===========================================")
	fmt.Println("  🚀 Bot Started (long polling)")
	fmt.Println("===========================================")
	fmt.Println("Press Ctrl+C to stop the bot")
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		router.Run(gctx, updates)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("🛑 Stopping update polling...")
		api.StopReceivingUpdates()
		return nil
	})
	return g.Wait()
}

func runWebhook(ctx context.Context, api *tgbotapi.BotAPI, router *bot.Router, cfg config.Config) error {
	hookURL, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return errors.Wrap(err, "parse webhook url")
	}
	wh, err := tgbotapi.NewWebhook(cfg.WebhookURL)
	if err != nil {
		return errors.Wrap(err, "build webhook")
	}
	if _, err := api.Request(wh); err != nil {
		return errors.Wrap(err, "register webhook")
	}

	path := hookURL.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, webhookHandler(ctx, api, router))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	fmt.Println("===========================================")
	fmt.Println("  🚀 Bot Started (webhook)")
	fmt.Println("===========================================")
	fmt.Printf("📝 Webhook:  %s\n", cfg.WebhookURL)
	fmt.Printf("🔌 Listening on port %s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop the bot")
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "webhook server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("🛑 Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnf("⚠️ Server shutdown error: %v", err)
		} else {
			zap.S().Info("✅ HTTP server stopped")
		}

		zap.S().Info("🛑 Waiting for in-flight updates...")
		router.Wait()
		return nil
	})
	return g.Wait()
}

func webhookHandler(ctx context.Context, api *tgbotapi.BotAPI, router *bot.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		update, err := api.HandleUpdate(r)
		if err != nil {
			zap.S().Warnf("⚠️ Bad webhook request from %s: %v", r.RemoteAddr, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		router.Dispatch(ctx, *update)
		w.WriteHeader(http.StatusOK)
	}
}

func cachePathOrMemory(path string) string {
	if path == "" {
		return "in memory"
	}
	return path
}
