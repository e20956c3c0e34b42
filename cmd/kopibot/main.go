package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kopibot/kopibot/ai"
	"github.com/kopibot/kopibot/engine"
	"github.com/kopibot/kopibot/engine/metrics"
	"github.com/kopibot/kopibot/internal/profile"
	"github.com/kopibot/kopibot/internal/version"
	"github.com/kopibot/kopibot/plugin/channels/telegram"
	"github.com/kopibot/kopibot/server"
	"github.com/kopibot/kopibot/store"
	"github.com/kopibot/kopibot/store/db/postgres"
	"github.com/kopibot/kopibot/store/db/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "kopibot",
	Short: `A chat assistant for a coffee chain: drinkware search, outlet lookup and price math over HTTP and Telegram.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution (not when running as systemd service)
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:         viper.GetString("mode"),
			Addr:         viper.GetString("addr"),
			Port:         viper.GetInt("port"),
			Data:         viper.GetString("data"),
			Driver:       viper.GetString("driver"),
			DSN:          viper.GetString("dsn"),
			ProductsPath: viper.GetString("products"),
			OutletsPath:  viper.GetString("outlets"),
			Version:      version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		logger := newLogger(instanceProfile)
		slog.SetDefault(logger)

		if err := run(instanceProfile, logger); err != nil {
			logger.Error("kopibot exited with error", "error", err)
			os.Exit(1)
		}
	},
}

func run(p *profile.Profile, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
	defer stop()

	products, err := store.LoadProducts(p.ProductsPath)
	if err != nil {
		return err
	}

	registry, err := sqlite.NewDB(p)
	if err != nil {
		return err
	}
	defer registry.Close()
	if outlets, err := store.LoadOutlets(p.OutletsPath); err != nil {
		logger.Warn("outlet seed file not loaded", "path", p.OutletsPath, "error", err)
	} else if err := registry.Seed(ctx, outlets); err != nil {
		return err
	}

	exporter := metrics.NewExporter(metrics.DefaultConfig())

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(exporter),
	}
	serverOpts := []server.Option{
		server.WithMetrics(exporter),
	}

	if p.IsAIEnabled() {
		index, err := newSemanticIndex(p)
		if err != nil {
			// The keyword retriever still works, so start degraded.
			logger.Error("semantic index unavailable, continuing keyword-only", "error", err)
		} else {
			engineOpts = append(engineOpts, engine.WithSemanticIndex(index))
			serverOpts = append(serverOpts, server.WithReindexer(index, products))
		}
	}

	eng := engine.New(products, registry, engineOpts...)
	srv := server.New(eng, p, logger, serverOpts...)

	printGreetings(p, len(products))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx, fmt.Sprintf("%s:%d", p.Addr, p.Port))
	})
	if p.TelegramToken != "" {
		g.Go(func() error {
			ch, err := telegram.New(p.TelegramToken, eng, logger)
			if err != nil {
				return err
			}
			if err := ch.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// newSemanticIndex connects the pgvector store and the embedding provider.
func newSemanticIndex(p *profile.Profile) (*postgres.Index, error) {
	embedder, err := ai.NewEmbeddingService(&ai.EmbeddingConfig{
		APIKey:  p.AIEmbeddingAPIKey,
		BaseURL: p.AIEmbeddingBaseURL,
		Model:   p.AIEmbeddingModel,
	})
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDB(p.VectorDSN, embedder.Dimensions())
	if err != nil {
		return nil, err
	}

	index := postgres.NewIndex(db, embedder, p.AIEmbeddingModel)
	if status, err := index.Status(context.Background()); err == nil {
		slog.Info("vector store connected", "status", status)
	}
	return index, nil
}

func newLogger(p *profile.Profile) *slog.Logger {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if p.Mode == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "outlet store driver (sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "outlet store source name (aka. DSN)")
	rootCmd.PersistentFlags().String("products", "", "path to the product catalogue JSON")
	rootCmd.PersistentFlags().String("outlets", "", "path to the outlet seed JSON")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "products", "outlets"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("kopibot")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile, products int) {
	fmt.Printf("KopiBot %s started successfully!\n", p.Version)

	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if p.DSN != "" {
			fmt.Fprintf(os.Stderr, "Outlet store: %s\n", p.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Product catalogue: %d items\n", products)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.IsAIEnabled() {
		fmt.Println("Semantic product search: enabled")
	} else {
		fmt.Println("Semantic product search: disabled (keyword-only)")
	}

	if len(p.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", p.Port)
		fmt.Printf("Chat endpoint: http://localhost:%d/api/v1/chat\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
	if p.TelegramToken != "" {
		fmt.Println("Telegram channel: enabled")
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
