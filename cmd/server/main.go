// Command server runs one bedside ECMO trend-logging session: an in-memory
// observation table behind an HTTP API, with CSV export/restore as the only
// durability mechanism.
package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/clinilog/ecmotrend/pkg/config"
	"github.com/clinilog/ecmotrend/pkg/server"
	"github.com/clinilog/ecmotrend/pkg/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	st := store.New(cfg.Schema)
	hub := server.NewHub()
	handler := server.NewHandler(st, hub)

	router := mux.NewRouter()
	server.SetupRoutes(router, handler, hub)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		log.Printf("ecmotrend session started on :%s (schema %s)", cfg.Port, cfg.Schema.Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down; the table is session-scoped, export before closing")
	cancelHub()

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Session ended")
}

// setupLogging mirrors console logs to a rotating file when one is
// configured.
func setupLogging(cfg config.Config) {
	if cfg.LogFile == "" {
		return
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotated))
}
