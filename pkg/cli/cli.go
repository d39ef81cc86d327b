package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "deepfocus",
		Usage: "On-demand voice agent over captured phone notifications",
		Commands: []*cli.Command{
			serveCommand(),
			ingestCommand(),
			askCommand(),
			listenCommand(),
			showCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
