package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alokranjan04/admin-voice-agent/pkg/server"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg            config
		addr           string
		staticTokens   string
		jwtSecret      string
		allowedOrigins string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("VOICE_AGENT_ADDR", "ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "static-tokens",
			Usage:       "Comma separated bearer tokens accepted by the API",
			Sources:     cli.EnvVars("STATIC_TOKENS"),
			Destination: &staticTokens,
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "HMAC secret for bearer JWTs accepted by the API",
			Sources:     cli.EnvVars("JWT_HMAC_SECRET"),
			Destination: &jwtSecret,
		},
		&cli.StringFlag{
			Name:        "allowed-origins",
			Usage:       "Comma separated origin patterns allowed to open the event stream",
			Sources:     cli.EnvVars("ALLOWED_ORIGINS"),
			Destination: &allowedOrigins,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, profileFlags(&cfg)...)
	flags = append(flags, liveFlags(&cfg)...)
	flags = append(flags, calendarFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, audioFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the host control API for calls on this machine",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			profiles, err := cfg.loadProfiles()
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

			ctrl, err := cfg.newController(ctx, repo, pol)
			if err != nil {
				return err
			}

			auth := server.Auth{
				StaticTokens: splitList(staticTokens),
				JWTSecret:    jwtSecret,
			}
			if !auth.Enabled() {
				logging.From(ctx).Warn("API authentication is disabled")
			}

			opts := []server.Option{
				server.WithAuth(auth),
				server.WithCalendarAuth(cfg.authContext()),
				server.WithRepository(repo),
				server.WithOriginPatterns(splitList(allowedOrigins)...),
			}

			// Out-of-call tool requests run against the default profile.
			if profile, err := profiles.Resolve(cfg.profileName); err == nil {
				tools, err := newTools(ctx, profile, cfg.authContext(), repo, pol)
				if err != nil {
					logging.From(ctx).Warn("scheduling tools are unavailable outside of calls", "error", err)
				} else {
					opts = append(opts, server.WithTools(tools))
				}
			}

			srv := server.New(ctrl, profiles, opts...)
			err = srv.Run(ctx, addr)

			if s := ctrl.Disconnect(); s != nil {
				waitPersisted(s)
			}
			return err
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
