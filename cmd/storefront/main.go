// File: storefront-client/cmd/storefront/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"

	"storefront-client/internal/analytics"
	"storefront-client/internal/api"
	"storefront-client/internal/cartsync"
	"storefront-client/internal/config"
	"storefront-client/internal/devapi"
	"storefront-client/internal/domain"
	"storefront-client/internal/navcache"
	"storefront-client/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Not fatal: configuration may come entirely from the environment.
		log.Println("INFO: no .env file found, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: error loading configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("FATAL: error building logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stdout sync failures are harmless at exit

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront client runtime developer tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newDevAPICmd(cfg, logger),
		newLoginCmd(cfg, logger),
		newLogoutCmd(cfg, logger),
		newCartCmd(cfg, logger),
		newNavCmd(cfg, logger),
	)

	if err := root.Execute(); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.AppEnv == "development" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// openLocalStore opens (and migrates) the sqlite-backed local storage, the
// persistent analogue of the browser's key-value storage.
func openLocalStore(ctx context.Context, cfg *config.Config) (*storage.SQLStore, error) {
	db, err := sql.Open("sqlite", cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage at %s: %w", cfg.Storage.Path, err)
	}
	store := storage.NewSQLStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// --- devapi: local marketplace API stub ---

func newDevAPICmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "devapi",
		Short: "Run the local marketplace cart API stub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevAPI(cfg, logger)
		},
	}
}

func runDevAPI(cfg *config.Config, logger *zap.Logger) error {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Get("/api/v1/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","serviceName":"storefront-devapi","timestamp":%q}`,
			time.Now().UTC().Format(time.RFC3339))
	})

	handler := devapi.NewHandler(logger)
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.DevServer.Port,
		Handler:      router,
		ReadTimeout:  cfg.DevServer.TimeoutRead,
		WriteTimeout: cfg.DevServer.TimeoutWrite,
		IdleTimeout:  cfg.DevServer.TimeoutIdle,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev API listening", zap.String("port", cfg.DevServer.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("dev API stopped")
	return <-errCh
}

// --- login / logout: manage the local auth token ---

func newLoginCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store a bearer token in local storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLocalStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Set(cmd.Context(), storage.KeyAuthToken, args[0]); err != nil {
				return err
			}
			logger.Info("logged in")
			return nil
		},
	}
}

func newLogoutCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the bearer token from local storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLocalStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Delete(cmd.Context(), storage.KeyAuthToken); err != nil {
				return err
			}
			logger.Info("logged out")
			return nil
		},
	}
}

// --- cart: drive the synchronizer from the command line ---

func newCartCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and mutate the cart through the synchronizer",
	}
	cartCmd.AddCommand(newCartReloadCmd(cfg, logger))
	cartCmd.AddCommand(newCartAddCmd(cfg, logger))
	cartCmd.AddCommand(newCartRemoveCmd(cfg, logger))
	return cartCmd
}

func newSynchronizer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cartsync.Synchronizer, *storage.SQLStore, error) {
	store, err := openLocalStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	client := api.NewClient(cfg.API.BaseURL, &http.Client{Timeout: cfg.API.Timeout}, logger)
	return cartsync.NewSynchronizer(store, client, logger), store, nil
}

func newCartReloadCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reconcile and print the current cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, store, err := newSynchronizer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := syncer.ReloadCart(cmd.Context()); err != nil {
				return err
			}
			printCart(cmd, syncer.Items())
			return nil
		},
	}
}

func newCartAddCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	var (
		productID int64
		name      string
		image     string
		price     float64
		quantity  int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a line to the local guest cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLocalStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			raw, _, err := store.Get(cmd.Context(), storage.KeyCart)
			if err != nil {
				return err
			}
			records := domain.DecodeGuestCart([]byte(raw))
			records = append(records, domain.GuestRecord{
				ID:          int64(len(records) + 1),
				ProductID:   productID,
				ProductName: name,
				Images:      domain.ImageList{image},
				UnitPrice:   price,
				Quantity:    quantity,
			})
			data, err := domain.EncodeGuestCart(records)
			if err != nil {
				return err
			}
			if err := store.Set(cmd.Context(), storage.KeyCart, string(data)); err != nil {
				return err
			}
			logger.Info("guest cart line added", zap.Int64("product_id", productID))
			return nil
		},
	}
	cmd.Flags().Int64Var(&productID, "product-id", 0, "product id")
	cmd.Flags().StringVar(&name, "name", "", "product display name")
	cmd.Flags().StringVar(&image, "image", "", "product image reference")
	cmd.Flags().Float64Var(&price, "price", 0, "unit price")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "quantity")
	cobra.CheckErr(cmd.MarkFlagRequired("product-id"))
	cobra.CheckErr(cmd.MarkFlagRequired("name"))
	return cmd
}

func newCartRemoveCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <line-id>",
		Short: "Remove one line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lineID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid line id %q: %w", args[0], err)
			}

			syncer, store, err := newSynchronizer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := syncer.ReloadCart(cmd.Context()); err != nil {
				return err
			}
			if err := syncer.RemoveCartItem(cmd.Context(), lineID); err != nil {
				return err
			}
			printCart(cmd, syncer.Items())
			return nil
		},
	}
}

// --- nav: exercise the navigation cache and prefetch strategy ---

// printRouter is the Router wired into the CLI: it has no real page
// transitions to perform, so it prints what a storefront shell would do.
type printRouter struct {
	cmd *cobra.Command
}

func (r printRouter) Push(path string) error {
	r.cmd.Printf("push\t%s\n", path)
	return nil
}

func (r printRouter) Replace(path string) error {
	r.cmd.Printf("replace\t%s\n", path)
	return nil
}

func (r printRouter) Prefetch(path string) error {
	r.cmd.Printf("prefetch\t%s\n", path)
	return nil
}

func newNavCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	navCmd := &cobra.Command{
		Use:   "nav",
		Short: "Exercise the navigation cache and prefetch strategy",
	}

	var (
		authenticated bool
		hasShop       bool
		cartCount     int
		recent        []string
		saveData      bool
		effectiveType string
	)
	prefetchCmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Compute the prefetch strategy for a user context and run it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := navcache.New(navcache.Options{
				MaxEntries:    cfg.Cache.MaxEntries,
				EntryTTL:      cfg.Cache.EntryTTL,
				SweepInterval: cfg.Cache.SweepInterval,
				BatchSize:     cfg.Cache.PrefetchBatchSize,
				BatchDelay:    cfg.Cache.PrefetchBatchDelay,
				Network:       &navcache.NetworkInfo{SaveData: saveData, EffectiveType: effectiveType},
				Logger:        logger,
			})
			defer cache.Close()

			routes := navcache.GetPrefetchStrategy(navcache.UserContext{
				IsAuthenticated: authenticated,
				HasShop:         hasShop,
				CartItemCount:   cartCount,
				RecentlyVisited: recent,
			})
			results := cache.ConditionalPrefetch(printRouter{cmd: cmd}, routes)
			if results == nil {
				cmd.Println("prefetch suppressed: constrained network")
				return nil
			}
			for _, res := range results {
				cmd.Printf("%s\t%s\n", res.Path, res.Outcome)
			}
			return nil
		},
	}
	prefetchCmd.Flags().BoolVar(&authenticated, "authenticated", false, "treat the user as logged in")
	prefetchCmd.Flags().BoolVar(&hasShop, "has-shop", false, "user owns a shop")
	prefetchCmd.Flags().IntVar(&cartCount, "cart-count", 0, "number of cart items")
	prefetchCmd.Flags().StringSliceVar(&recent, "recent", nil, "recently visited routes")
	prefetchCmd.Flags().BoolVar(&saveData, "save-data", false, "simulate a data-saver connection")
	prefetchCmd.Flags().StringVar(&effectiveType, "effective-type", "4g", "simulated connection effective type")
	navCmd.AddCommand(prefetchCmd)

	var replace bool
	goCmd := &cobra.Command{
		Use:   "go <path>...",
		Short: "Navigate to one or more routes through the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := navcache.New(navcache.Options{
				MaxEntries:    cfg.Cache.MaxEntries,
				EntryTTL:      cfg.Cache.EntryTTL,
				SweepInterval: cfg.Cache.SweepInterval,
				BatchSize:     cfg.Cache.PrefetchBatchSize,
				BatchDelay:    cfg.Cache.PrefetchBatchDelay,
				Tracker:       analytics.NewLogTracker(logger),
				Logger:        logger,
			})
			defer cache.Close()

			router := printRouter{cmd: cmd}
			for _, path := range args {
				opts := navcache.NavigateOptions{
					Replace:    replace,
					Prefetch:   true,
					TrackEvent: "cli_navigation",
				}
				if err := cache.Navigate(router, path, opts); err != nil {
					return err
				}
			}
			return nil
		},
	}
	goCmd.Flags().BoolVar(&replace, "replace", false, "replace instead of push")
	navCmd.AddCommand(goCmd)

	return navCmd
}

func printCart(cmd *cobra.Command, lines []domain.CartLine) {
	if len(lines) == 0 {
		cmd.Println("cart is empty")
		return
	}
	for _, line := range lines {
		cmd.Printf("%d\t%s\tx%d\t%.2f\n", line.ID, line.ProductName, line.Quantity, line.EffectivePrice())
	}
}
