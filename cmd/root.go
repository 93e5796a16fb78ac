package cmd

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hpcq/hpcq/internal/queue"
)

var (
	backend    string
	redisAddr  string
	sqlitePath string
)

var rootCmd = &cobra.Command{
	Use:   "hpcq",
	Short: "Asynchronous job dispatch for a shared compute cluster",
	Long: `hpcq moves jobs from a control plane to worker processes through a
shared queue and recovers each result asynchronously. Workers run container
builds, GPU benchmarks, arbitrary cluster scripts and metadata queries.`,
}

func Execute() {
	// glog registers its flags on the standard flag set.
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
	rootCmd.PersistentFlags().StringVar(&backend, "backend", envOr("HPCQ_BACKEND", "redis"),
		"queue backend: redis or sqlite")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"),
		"redis address for the redis backend")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "hpcq.db",
		"database file for the sqlite backend")

	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(submitCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openBroker() (queue.Broker, error) {
	switch backend {
	case "redis":
		return queue.NewRedis(redisAddr), nil
	case "sqlite":
		return queue.NewSQLite(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown backend %q, want redis or sqlite", backend)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
