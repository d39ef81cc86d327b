package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to a YAML or JSON file with one notification or a list of notifications",
			Sources:     cli.EnvVars("DEEPFOCUS_INPUT"),
			Destination: &inputPath,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Store notifications from a file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return goerr.Wrap(err, "failed to read input file", goerr.V("path", inputPath))
			}

			notifications, err := parseNotifications(data)
			if err != nil {
				return goerr.Wrap(err, "failed to parse input file", goerr.V("path", inputPath))
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

			w := c.Root().Writer
			for _, n := range notifications {
				result, err := uc.Ingest(ctx, n)
				if err != nil {
					return goerr.Wrap(err, "failed to ingest notification", goerr.V("id", n.ID))
				}

				switch {
				case result.Intercepted != nil:
					fmt.Fprintf(w, "%s: intercepted: %s\n", n.ID, result.ResponseText)
				case result.Skipped:
					fmt.Fprintf(w, "%s: skipped\n", n.ID)
				default:
					fmt.Fprintf(w, "%s: ingested\n", n.ID)
				}
			}

			return nil
		},
	}
}

// parseNotifications accepts a single mapping or a sequence of mappings.
// JSON input is read as YAML.
func parseNotifications(data []byte) ([]*model.Notification, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, goerr.Wrap(err, "invalid YAML or JSON")
	}
	if len(node.Content) == 0 {
		return nil, goerr.New("input is empty")
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []*model.Notification
		if err := root.Decode(&list); err != nil {
			return nil, goerr.Wrap(err, "failed to decode notification list")
		}
		return list, nil

	case yaml.MappingNode:
		var n model.Notification
		if err := root.Decode(&n); err != nil {
			return nil, goerr.Wrap(err, "failed to decode notification")
		}
		return []*model.Notification{&n}, nil

	default:
		return nil, goerr.New("input must be a notification or a list of notifications")
	}
}
