package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

var version = "dev"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:    "admin-voice-agent",
		Version: version,
		Usage:   "Voice receptionist that books appointments over a live audio call",
		Commands: []*cli.Command{
			callCommand(),
			serveCommand(),
			checkCommand(),
			slotsCommand(),
			bookCommand(),
			mcpCommand(),
			profilesCommand(),
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
