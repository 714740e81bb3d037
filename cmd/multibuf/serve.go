package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cuelang.org/go/cue"
	"github.com/epithet-ssh/multibuf/pkg/packserver"
)

// ServeCLI runs the HTTP packing service.
type ServeCLI struct {
	Listen       string `help:"Address to listen on (default: :8080)" short:"l"`
	MaxBodyBytes int64  `help:"Request body limit in bytes (default: 32 MiB)" name:"max-body-bytes"`
	Strict       bool   `help:"Unpack in strict mode"`
	MaxBuffers   int    `help:"Maximum buffers per packed body (0: no limit)" name:"max-buffers"`
	TLSCert      string `help:"PEM certificate; serves HTTPS together with --tls-key" name:"tls-cert"`
	TLSKey       string `help:"PEM private key for --tls-cert" name:"tls-key"`
}

func (s *ServeCLI) Run(logger *slog.Logger, unified cue.Value) error {
	serve, err := loadServeSettings(unified, s.Listen, s.MaxBodyBytes, s.TLSCert, s.TLSKey)
	if err != nil {
		return err
	}
	unpack, err := loadUnpackSettings(unified, s.Strict, s.MaxBuffers, "")
	if err != nil {
		return err
	}

	handler := packserver.New(packserver.Config{
		Logger:       logger,
		MaxBodyBytes: serve.MaxBodyBytes,
		Strict:       unpack.Strict,
		MaxBuffers:   unpack.MaxBuffers,
	})

	tlsCfg, err := serve.TLS.ServerConfig()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              serve.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsCfg,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting pack server", "listen", serve.Listen, "tls", tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			// Certificates come from TLSConfig.
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down pack server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
