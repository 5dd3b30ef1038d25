package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

func scheduleFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, profileFlags(cfg)...)
	flags = append(flags, calendarFlags(cfg)...)
	flags = append(flags, storeFlags(cfg)...)
	return flags
}

func checkCommand() *cli.Command {
	var (
		cfg        config
		date, time string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "date",
			Aliases:     []string{"d"},
			Usage:       "Date to check (YYYY-MM-DD)",
			Destination: &date,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "time",
			Aliases:     []string{"t"},
			Usage:       "Time to check (HH:MM, 24 hour)",
			Destination: &time,
			Required:    true,
		},
	}
	flags = append(flags, scheduleFlags(&cfg)...)

	return &cli.Command{
		Name:  "check",
		Usage: "Check whether a time is free on the profile's calendar",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return cfg.runTool(ctx, c, model.ToolCheckAvailability, map[string]any{
				"date": date,
				"time": time,
			})
		},
	}
}

func slotsCommand() *cli.Command {
	var (
		cfg  config
		date string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "date",
			Aliases:     []string{"d"},
			Usage:       "Date to search from (YYYY-MM-DD)",
			Destination: &date,
			Required:    true,
		},
	}
	flags = append(flags, scheduleFlags(&cfg)...)

	return &cli.Command{
		Name:  "slots",
		Usage: "List free slots from a date",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return cfg.runTool(ctx, c, model.ToolFindAvailableSlots, map[string]any{
				"date": date,
			})
		},
	}
}

func bookCommand() *cli.Command {
	var (
		cfg  config
		args = map[string]*string{}
	)

	var flags []cli.Flag
	for _, f := range []struct {
		name, usage string
		required    bool
	}{
		{"name", "Caller's full name", true},
		{"phone", "Caller's phone number", true},
		{"email", "Caller's email address", true},
		{"service", "Service to book", true},
		{"date", "Date of the appointment (YYYY-MM-DD)", true},
		{"time", "Start time of the appointment (HH:MM, 24 hour)", true},
	} {
		v := new(string)
		args[f.name] = v
		flags = append(flags, &cli.StringFlag{
			Name:        f.name,
			Usage:       f.usage,
			Destination: v,
			Required:    f.required,
		})
	}
	flags = append(flags, scheduleFlags(&cfg)...)

	return &cli.Command{
		Name:  "book",
		Usage: "Create a booking on the profile's calendar",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			fcArgs := make(map[string]any, len(args))
			for k, v := range args {
				fcArgs[k] = *v
			}
			return cfg.runTool(ctx, c, model.ToolCreateBooking, fcArgs)
		},
	}
}

// runTool executes one scheduling function and prints its response as JSON.
func (cfg *config) runTool(ctx context.Context, c *cli.Command, name string, args map[string]any) error {
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

	return printToolResult(ctx, c, tools, name, args)
}

func printToolResult(ctx context.Context, c *cli.Command, tools *tool.Registry, name string, args map[string]any) error {
	ctx = tool.WithSessionID(ctx, model.SessionID("cli-"+uuid.NewString()))

	resp, err := tools.Execute(ctx, genai.FunctionCall{Name: name, Args: args})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp.Response); err != nil {
		return goerr.Wrap(err, "failed to write response")
	}
	return nil
}
