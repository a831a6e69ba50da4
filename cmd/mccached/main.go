// Command mccached runs one member of a McCache cluster: it joins the
// configured multicast group, serves Prometheus metrics, and demonstrates
// the coherence protocol by exposing a toy namespace on the command line.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mccache/mccache/pkg/mccache"
	"github.com/mccache/mccache/pkg/mccache/config"
	"github.com/mccache/mccache/pkg/mccache/logging"
)

var (
	envFile     string
	metricsAddr string
	debug       bool
)

func main() {
	root := &cobra.Command{Use: "mccached", Short: "run a McCache cluster member"}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file of MCCACHE_* settings")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9126", "address to serve /metrics on")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "run at debug log level")
	root.AddCommand(serveCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "join the multicast group and serve until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(envFile, func(format string, a ...interface{}) {
				fmt.Fprintf(os.Stderr, "config: "+format+"\n", a...)
			})

			level := logrus.InfoLevel
			if debug {
				level = logrus.DebugLevel
			}
			logger := logging.NewWithLevel(level, cfg.DebugFile)

			coordinator, err := mccache.Start(cfg, logger)
			if err != nil {
				return fmt.Errorf("starting coordinator: %w", err)
			}
			logger.Infof("joined %s:%d at posture %s", cfg.MulticastGroup, cfg.MulticastPort, cfg.Posture)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Errorf("metrics server: %v", err)
				}
			}()

			demo := coordinator.GetCache("demo", nil)
			_ = demo.Set("hello", []byte("world"), true)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			logger.Infof("shutting down")
			_ = server.Close()
			coordinator.Shutdown()
			return nil
		},
	}
}
