package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Face Attendance HTTP API.

The server applies pending database migrations, connects to the vision
model (running without it in a degraded mode if it is unreachable) and
builds the candidate source selected by MATCH_INDEX. With MATCH_INDEX=hnsw
and MATCH_INDEX_PATH set, the graph is loaded on start when it is still
current and saved again on shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	detector := vision.Connect(ctx, cfg.Vision, logger)
	source, saveIndex, err := newSource(ctx, cfg, b, logger)
	if err != nil {
		return err
	}
	service := newService(cfg, b, detector, source, logger)

	server := web.NewServer(cfg, web.Deps{
		Service:    service,
		Users:      b.users,
		Embeddings: b.embeddings,
		Courses:    b.courses,
		Lectures:   b.lectures,
		Attendance: b.attendance,
		DB:         b,
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Face Attendance API listening on http://%s\n", cfg.Web.Addr())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		saveIndex()
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)
	saveIndex()
	return shutdownErr
}
