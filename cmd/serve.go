package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngxtan/rollcall/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the Rollcall web server.
The server exposes the REST API used by kiosk cameras and the admin
frontend: enrollment, session lifecycle, frame recognition, reports.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.cfg.ValidateForServe(); err != nil {
		return err
	}

	// Flags win over env for host and port.
	if cmd.Flags().Changed("port") {
		eng.cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		eng.cfg.Web.Host = mustGetString(cmd, "host")
	}

	// Warm the in-memory index so identify does not hit pgvector on
	// every request. Failure is not fatal.
	if n, err := eng.persons.WarmIndex(context.Background()); err != nil {
		fmt.Printf("Warning: failed to build person index: %v\n", err)
		fmt.Printf("Identify will use PostgreSQL queries (slower)\n")
	} else {
		fmt.Printf("Person index built with %d enrolled persons\n", n)
	}

	server := web.NewServer(eng.cfg, eng.service, eng.stores)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Rollcall API on http://%s:%d\n", eng.cfg.Web.Host, eng.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
