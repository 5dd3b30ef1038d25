package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/adapter"
	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/policy"
	"github.com/alokranjan04/admin-voice-agent/pkg/repository"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/call"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const consoleHelp = `Commands:
  connect [profile]  start a call (default profile when omitted)
  disconnect         end the current call
  status             show the session state
  help               show this message
  quit               end the call and exit
`

func callCommand() *cli.Command {
	var (
		cfg         config
		historyFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "Console command history file",
			Sources:     cli.EnvVars("VOICE_AGENT_HISTORY_FILE"),
			Destination: &historyFile,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, profileFlags(&cfg)...)
	flags = append(flags, liveFlags(&cfg)...)
	flags = append(flags, calendarFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, audioFlags(&cfg)...)

	return &cli.Command{
		Name:  "call",
		Usage: "Run a call from this machine's microphone and speaker",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, os.Stderr)

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

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "admin-voice-agent> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "quit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start console")
			}
			defer rl.Close()

			con := &console{
				ctrl:     ctrl,
				profiles: profiles,
				auth:     cfg.authContext(),
				defName:  cfg.profileName,
				w:        rl.Stdout(),
			}

			sub := ctrl.Subscribe()
			defer sub.Unsubscribe()
			go con.printEvents(sub)

			fmt.Fprint(con.w, consoleHelp)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if ctrl.Status().State.Live() {
						con.disconnect()
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read command")
				}

				if quit := con.exec(ctx, strings.Fields(line)); quit {
					break
				}
			}

			if s := ctrl.Disconnect(); s != nil {
				waitPersisted(s)
			}
			return nil
		},
	}
}

// newController builds the call controller over a shared repository and policy.
func (cfg *config) newController(ctx context.Context, repo repository.Repository, pol *policy.Booking) (*call.Controller, error) {
	live, err := cfg.newLive(ctx)
	if err != nil {
		return nil, err
	}

	archive, err := cfg.newArchive(ctx)
	if err != nil {
		return nil, err
	}

	opts := []call.Option{
		call.WithCallLogRepository(repo),
		call.WithNoiseGate(cfg.newGate()),
	}
	if archive != nil {
		opts = append(opts, call.WithArchive(archive))
	}

	return call.New(live, adapter.NewFFmpegDevices(cfg.micInput), toolsFactory(repo, pol), opts...), nil
}

type console struct {
	ctrl     *call.Controller
	profiles *model.Profiles
	auth     model.AuthContext
	defName  string
	w        io.Writer
}

func (x *console) exec(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch strings.ToLower(args[0]) {
	case "connect", "c":
		name := x.defName
		if len(args) > 1 {
			name = args[1]
		}
		x.connect(ctx, name)

	case "disconnect", "d":
		x.disconnect()

	case "status", "s":
		st := x.ctrl.Status()
		if st.SessionID == "" {
			fmt.Fprintf(x.w, "%s\n", st.State)
		} else {
			fmt.Fprintf(x.w, "%s  session=%s profile=%s\n", st.State, st.SessionID, st.Profile)
		}

	case "help", "h", "?":
		fmt.Fprint(x.w, consoleHelp)

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(x.w, "unknown command: %s\n", args[0])
	}
	return false
}

func (x *console) connect(ctx context.Context, name string) {
	profile, err := x.profiles.Resolve(name)
	if err != nil {
		fmt.Fprintf(x.w, "error: %v\n", err)
		return
	}

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(x.w))
	sp.Suffix = " connecting to " + profile.BusinessName
	sp.Start()
	s, err := x.ctrl.Connect(ctx, call.Config{Profile: profile, Auth: x.auth})
	sp.Stop()

	if err != nil {
		logging.From(ctx).Debug("connect failed", "error", err)
		fmt.Fprintf(x.w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(x.w, "session %s started, speak into the microphone\n", s.ID)
}

func (x *console) disconnect() {
	s := x.ctrl.Disconnect()
	if s == nil {
		fmt.Fprintln(x.w, "no active call")
	}
}

func (x *console) printEvents(sub *call.Subscription) {
	for {
		select {
		case state, ok := <-sub.Status:
			if !ok {
				return
			}
			fmt.Fprintf(x.w, "[%s]\n", state)
		case entry, ok := <-sub.Log:
			if !ok {
				return
			}
			fmt.Fprintf(x.w, "%s %-6s %s\n", entry.Timestamp.Format("15:04:05"), entry.Type, entry.Text)
		case _, ok := <-sub.Volume:
			if !ok {
				return
			}
		}
	}
}

// waitPersisted gives the call log a moment to be written before exit.
func waitPersisted(s *call.Session) {
	select {
	case <-s.Done():
	case <-time.After(35 * time.Second):
	}
}
