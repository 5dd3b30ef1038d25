package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

func profilesCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "profiles",
		Usage: "List the configured business profiles",
		Flags: profileFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			profiles, err := cfg.loadProfiles()
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, name := range profiles.Names() {
				p := profiles.Profiles[name]
				mark := " "
				if name == profiles.Default {
					mark = "*"
				}
				fmt.Fprintf(w, "%s %-16s %s\n", mark, name, p.BusinessName)
				fmt.Fprintf(w, "    hours: %s %s (%s)\n", p.Hours, strings.Join(p.Days, ","), p.Timezone)
				fmt.Fprintf(w, "    calendar: %s, %d min slots\n", p.CalendarID, p.SlotMinutes)
				if len(p.Services) > 0 {
					fmt.Fprintf(w, "    services: %s\n", strings.Join(p.Services, ", "))
				}
			}
			return nil
		},
	}
}
