package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/usecase/triage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg     config
		limit   int64
		outPath string
		verbose bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"k"},
			Usage:       "Notifications to retrieve for this query (1-20, 0 uses --top-k)",
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "Write the spoken answer to this WAV file",
			Destination: &outPath,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "Print the retrieved notifications",
			Destination: &verbose,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, speechFlags(&cfg)...)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the agent about recent notifications",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			text := strings.Join(c.Args().Slice(), " ")
			query := &model.Query{Text: text}
			if limit != 0 {
				k := int(limit)
				query.TopK = &k
			}
			if err := query.Validate(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			uc, err := cfg.newUseCase(ctx, repo)
			if err != nil {
				return err
			}

			var synth *triage.Synthesizer
			if outPath != "" {
				if synth, err = cfg.newSynthesizer(ctx); err != nil {
					return err
				}
			}

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " thinking..."
			s.Start()
			answer, err := uc.Query(ctx, query)
			s.Stop()
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if verbose {
				for _, line := range triage.AssembleContext(answer.Hits) {
					fmt.Fprintf(w, "  - %s\n", line)
				}
			}
			fmt.Fprintln(w, answer.Text)

			if synth == nil {
				return nil
			}

			return synth.Render(ctx, answer.Text, func(artifact *triage.Artifact) error {
				return copyFile(artifact.Path, outPath)
			})
		},
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return goerr.Wrap(err, "failed to open audio artifact", goerr.V("path", src))
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return goerr.Wrap(err, "failed to create output file", goerr.V("path", dst))
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return goerr.Wrap(err, "failed to write output file", goerr.V("path", dst))
	}
	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to close output file", goerr.V("path", dst))
	}
	return nil
}
