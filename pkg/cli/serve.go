package cli

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/m-mizutani/deepfocus/pkg/server"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg         config
		host        string
		port        int64
		corsOrigins string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "host",
			Usage:       "Listen address",
			Value:       "0.0.0.0",
			Sources:     cli.EnvVars("HOST"),
			Destination: &host,
		},
		&cli.IntFlag{
			Name:        "port",
			Usage:       "Listen port",
			Value:       8000,
			Sources:     cli.EnvVars("PORT"),
			Destination: &port,
		},
		&cli.StringFlag{
			Name:        "cors-origins",
			Usage:       "Allowed CORS origins, '*' or a comma separated list",
			Value:       "*",
			Sources:     cli.EnvVars("CORS_ORIGINS"),
			Destination: &corsOrigins,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, speechFlags(&cfg)...)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API for the mobile client",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			uc, err := cfg.newUseCase(ctx, repo)
			if err != nil {
				return err
			}

			synth, err := cfg.newSynthesizer(ctx)
			if err != nil {
				return err
			}

			srv := server.New(uc, synth, server.WithCORSOrigins(server.ParseOrigins(corsOrigins)))

			addr := net.JoinHostPort(host, strconv.FormatInt(port, 10))
			logging.From(ctx).Info("starting server",
				"addr", addr,
				"store", cfg.storeBackend,
				"embedding", cfg.embeddingBackend,
				"tts", cfg.ttsBackend,
				"top_k", uc.TopK())

			return srv.Run(ctx, addr)
		},
	}
}
