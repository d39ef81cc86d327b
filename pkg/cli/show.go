package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// documentView is a stored document without its vector
type documentView struct {
	ID         model.NotificationID `json:"notificationId"`
	Text       string               `json:"text"`
	Dimensions int                  `json:"dimensions"`
	Metadata   model.Metadata       `json:"metadata"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

func showCommand() *cli.Command {
	var (
		cfg            config
		notificationID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "notification-id",
			Aliases:     []string{"id"},
			Usage:       "Notification ID to show",
			Destination: &notificationID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show a stored notification document",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			doc, err := repo.GetDocument(ctx, model.NotificationID(notificationID))
			if err != nil {
				return goerr.Wrap(err, "failed to show notification")
			}

			data, err := json.MarshalIndent(documentView{
				ID:         doc.ID,
				Text:       doc.Text,
				Dimensions: len(doc.Embedding),
				Metadata:   doc.Metadata,
				UpdatedAt:  doc.UpdatedAt,
			}, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal document")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
			return nil
		},
	}
}
