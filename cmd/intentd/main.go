package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/intentd/intent/embedding"
	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/intent/logsink"
	"github.com/hrygo/intentd/intent/pipeline"
	"github.com/hrygo/intentd/intent/recognizer"
	"github.com/hrygo/intentd/intent/resultcache"
	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/internal/version"
	"github.com/hrygo/intentd/server"
	"github.com/hrygo/intentd/store"
	"github.com/hrygo/intentd/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "intentd",
	Short: `A multi-tenant intent recognition service: keyword, regex, semantic and LLM matchers behind one API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Systemd deployments pass environment through the unit file; .env is
		// only for direct binary execution.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", "error", err)
			return
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return
		}

		// Warm the embedding encoder and probe the LLM endpoint up front so
		// the first request does not pay the cost. Both are best-effort.
		llmClient := llm.NewClient(instanceProfile)
		go func() {
			warmupCtx, warmupCancel := context.WithTimeout(ctx, 30*time.Second)
			defer warmupCancel()
			embedding.Warmup(warmupCtx, instanceProfile)
			llmClient.HealthCheck(warmupCtx)
		}()

		compiler := pipeline.NewCompiler(instanceProfile, llmClient, embedding.Get(instanceProfile))

		var cache *resultcache.Cache
		if instanceProfile.EnableCache {
			cache = resultcache.New(instanceProfile)
		}

		sink := logsink.New(storeInstance, instanceProfile.LogQueueSize)
		svc := recognizer.NewService(instanceProfile, storeInstance, compiler, cache, sink, llmClient)
		s := server.NewServer(instanceProfile, storeInstance, svc)

		c := make(chan os.Signal, 1)
		// SIGTERM is the graceful shutdown signal used by most process
		// managers (systemd, Kubernetes).
		signal.Notify(c, terminationSignals...)

		go func() {
			if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				cancel()
			}
		}()

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			// Drain queued recognition logs before closing the database.
			sink.Shutdown()
			if cache != nil {
				_ = cache.Close()
			}
			_ = storeInstance.Close()
			cancel()
		}()

		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("intentd")
	viper.AutomaticEnv()
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("intentd %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
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
