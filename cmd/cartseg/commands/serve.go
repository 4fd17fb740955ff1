package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartseg/internal/api"
	"cartseg/internal/observability"
	"cartseg/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveAddr       string
	serveInput      string
	serveDSN        string
	serveTable      string
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve segmentation runs and stored results over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: LISTEN_ADDR)")
	serveCmd.Flags().StringVarP(&serveInput, "input", "i", "", "customer CSV file (default: CUSTOMER_CSV)")
	serveCmd.Flags().StringVar(&serveDSN, "dsn", "", "MySQL DSN (default: MYSQL_DSN)")
	serveCmd.Flags().StringVar(&serveTable, "table", "", "MySQL table name (default: MYSQL_TABLE)")
	serveCmd.Flags().StringVar(&serveConfigPath, "run-config", "", "run configuration JSON file (default: RUN_CONFIG)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	baseCfg, err := loadBaseRunConfig(serveConfigPath, 0)
	if err != nil {
		return err
	}

	csvPath := serveInput
	if csvPath == "" {
		csvPath = cfg.CSVPath
	}
	dsn := serveDSN
	if dsn == "" {
		dsn = cfg.MySQLDSN
	}
	table := serveTable
	if table == "" {
		table = cfg.MySQLTable
	}
	if csvPath == "" && dsn == "" {
		return fmt.Errorf("no input source: provide --input or --dsn")
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	metrics := observability.NewMetrics()
	svc := store.NewRunService(store.NewResultStore(cfg.StoreDir), sourceFactory(csvPath, dsn, table), baseCfg, metrics)
	server := api.NewServer(svc, metrics, Version)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
