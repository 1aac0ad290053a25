package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/logger"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/server"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var cfg server.Config
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tagger over HTTP",
		Long: `The serve command starts an HTTP server the browser extension posts
finished downloads to. POST /api/v1/tag takes a multipart form with the audio
in "audio_file", an optional "artwork_file" and one field per metadata value,
and answers with the tagged file.

Example:
  sctag serve --addr 127.0.0.1:8080 --allow-origin https://soundcloud.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", "127.0.0.1:8080", "Listen address")
	f.StringSliceVar(&cfg.AllowOrigins, "allow-origin", nil, "Allowed CORS origin (repeatable; default any)")
	f.Int64Var(&cfg.MaxUploadBytes, "max-upload", 256<<20, "Maximum request body size in bytes")
	return cmd
}

func runServe(ctx context.Context, cfg server.Config) error {
	cfg.Logger = logger.L
	cfg.Version = version
	printInfo("Listening on http://%s\n", cfg.Addr)
	return server.New(cfg).Run(ctx)
}
