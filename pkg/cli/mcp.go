package cli

import (
	"context"
	"os"

	"github.com/alokranjan04/admin-voice-agent/pkg/service/mcp"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the scheduling tools over MCP on stdio",
		Flags: scheduleFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			// stdout carries the protocol
			ctx = cfg.setupLogger(ctx, os.Stderr)

			profile, err := cfg.profile()
			if err != nil {
				return err
			}

			repo, release, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer release()

			pol, err := cfg.newPolicy(ctx)
			if err != nil {
				return err
			}

			tools, err := newTools(ctx, profile, cfg.authContext(), repo, pol)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(tools, c.Root().Version)
			if err != nil {
				return err
			}

			logging.From(ctx).Info("serving scheduling tools over MCP", "profile", profile.Name)
			if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
				return goerr.Wrap(err, "MCP server failed")
			}
			return nil
		},
	}
}
