package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/grandcat/zeroconf"
	"github.com/spf13/cobra"

	"github.com/nikhildhole/mermaid-visualizer/internal/api"
	"github.com/nikhildhole/mermaid-visualizer/internal/storage"
)

const mdnsService = "_mermaidsync._tcp"

func serveCmd() *cobra.Command {
	var addr, store string
	var advertise bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the document authority and chat proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = cfg.ListenAddr
			}
			opts := cfg.StorageOptions()
			if store != "" {
				opts.Kind = storage.Kind(store)
			}
			st, err := storage.Open(ctx, opts)
			if err != nil {
				return fmt.Errorf("open %s store: %w", opts.Kind, err)
			}
			defer st.Close()

			handler := api.NewHandler(api.HandlerConfig{
				Store:  st,
				AskURL: cfg.AskURL,
				Logger: logger,
			})
			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			handler.Mount(r)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}

			if advertise {
				port := ln.Addr().(*net.TCPAddr).Port
				host, _ := os.Hostname()
				mdns, err := zeroconf.Register(
					fmt.Sprintf("mermaidsync-%s", host),
					mdnsService,
					"local.",
					port,
					[]string{"path=/mermaid", "chat=/api/chat"},
					nil,
				)
				if err != nil {
					_ = ln.Close()
					return fmt.Errorf("register mDNS service: %w", err)
				}
				defer mdns.Shutdown()
				logger.Info("mDNS service registered", "service", mdnsService, "port", port)
			}

			srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()
			logger.Info("serving", "addr", ln.Addr().String(), "store", string(opts.Kind), "ask_url", cfg.AskURL)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $MERMAID_LISTEN_ADDR)")
	cmd.Flags().StringVar(&store, "store", "", "document store: memory, file, bolt, redis, postgres (default $MERMAID_STORE)")
	cmd.Flags().BoolVar(&advertise, "advertise", false, "advertise the server on the local network over mDNS")
	return cmd
}
