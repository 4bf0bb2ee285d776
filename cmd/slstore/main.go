package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/stronglink/pkg/config"
	"github.com/cuemby/stronglink/pkg/log"
	"github.com/cuemby/stronglink/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "slstore",
	Short:   "slstore - StrongLink's transactional key-value storage substrate",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"slstore version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(metricsCmd)
}

func initLogging() {
	cfgPath, _ := rootCmd.PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Log.Level
	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "info" {
		logLevel = v
	}
	logJSON := cfg.Log.JSON
	if v, _ := rootCmd.PersistentFlags().GetBool("log-json"); v {
		logJSON = v
	}

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Serve Prometheus metrics and health endpoints until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		metrics.SetVersion(Version)
		metrics.RegisterComponent("metrics", true, "serving on "+addr)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())

		log.WithComponent("cmd").Info().Str("addr", addr).Msg("serving metrics")
		return http.ListenAndServe(addr, mux)
	},
}

func init() {
	metricsCmd.Flags().String("addr", ":9090", "Listen address for the metrics endpoint")
}
