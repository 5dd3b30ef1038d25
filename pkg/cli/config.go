package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/adapter"
	"github.com/alokranjan04/admin-voice-agent/pkg/audio"
	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/policy"
	"github.com/alokranjan04/admin-voice-agent/pkg/repository"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool/scheduling"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/call"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/schedule"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	repoMemory    = "memory"
	repoFirestore = "firestore"
	repoPostgres  = "postgres"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Profiles
	profileFile string
	profileName string

	// Speech model
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	liveModel      string

	// Calendar
	calendarCredentials  string
	calendarAccessToken  string
	calendarRefreshToken string
	oauthClientID        string
	oauthClientSecret    string

	// Persistence
	repository        string
	firestoreProject  string
	firestoreDatabase string
	databaseURL       string
	archiveBucket     string
	policyDir         string

	// Audio
	micInput      string
	gateThreshold float64
}

func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("VOICE_AGENT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("VOICE_AGENT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

func profileFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "profile-file",
			Aliases:     []string{"f"},
			Usage:       "YAML file of business profiles",
			Sources:     cli.EnvVars("VOICE_AGENT_PROFILE_FILE"),
			Destination: &cfg.profileFile,
		},
		&cli.StringFlag{
			Name:        "profile",
			Aliases:     []string{"p"},
			Usage:       "Business profile to use",
			Sources:     cli.EnvVars("VOICE_AGENT_PROFILE"),
			Destination: &cfg.profileName,
		},
	}
}

func liveFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Vertex AI, used when no API key is set",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "live-model",
			Usage:       "Gemini Live model",
			Value:       adapter.DefaultLiveModel,
			Sources:     cli.EnvVars("VOICE_AGENT_LIVE_MODEL"),
			Destination: &cfg.liveModel,
		},
	}
}

func calendarFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "calendar-credentials",
			Usage:       "Service account credentials file for Google Calendar",
			Sources:     cli.EnvVars("CALENDAR_CREDENTIALS_FILE"),
			Destination: &cfg.calendarCredentials,
		},
		&cli.StringFlag{
			Name:        "calendar-access-token",
			Usage:       "End-user OAuth access token for Google Calendar",
			Sources:     cli.EnvVars("CALENDAR_ACCESS_TOKEN"),
			Destination: &cfg.calendarAccessToken,
		},
		&cli.StringFlag{
			Name:        "calendar-refresh-token",
			Usage:       "End-user OAuth refresh token, requires the OAuth client",
			Sources:     cli.EnvVars("CALENDAR_REFRESH_TOKEN"),
			Destination: &cfg.calendarRefreshToken,
		},
		&cli.StringFlag{
			Name:        "oauth-client-id",
			Usage:       "OAuth client ID",
			Sources:     cli.EnvVars("GOOGLE_CLIENT_ID"),
			Destination: &cfg.oauthClientID,
		},
		&cli.StringFlag{
			Name:        "oauth-client-secret",
			Usage:       "OAuth client secret",
			Sources:     cli.EnvVars("GOOGLE_CLIENT_SECRET"),
			Destination: &cfg.oauthClientSecret,
		},
	}
}

func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Where bookings and call logs are kept: memory, firestore or postgres",
			Value:       repoMemory,
			Sources:     cli.EnvVars("VOICE_AGENT_REPOSITORY"),
			Destination: &cfg.repository,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("FIRESTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "database-url",
			Usage:       "PostgreSQL connection string",
			Sources:     cli.EnvVars("DATABASE_URL"),
			Destination: &cfg.databaseURL,
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket for call transcripts",
			Sources:     cli.EnvVars("VOICE_AGENT_ARCHIVE_BUCKET"),
			Destination: &cfg.archiveBucket,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego booking policies",
			Sources:     cli.EnvVars("VOICE_AGENT_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

func audioFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "mic-input",
			Usage:       "ffmpeg capture input (pulse source on Linux, avfoundation device on macOS)",
			Sources:     cli.EnvVars("VOICE_AGENT_MIC_INPUT"),
			Destination: &cfg.micInput,
		},
		&cli.FloatFlag{
			Name:        "gate-threshold",
			Usage:       "Noise gate RMS threshold while the agent is silent",
			Value:       audio.DefaultGateThreshold,
			Sources:     cli.EnvVars("VOICE_AGENT_GATE_THRESHOLD"),
			Destination: &cfg.gateThreshold,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx.
func (cfg *config) setupLogger(ctx context.Context, w io.Writer) context.Context {
	logger := logging.New(cfg.logLevel, w, logging.ParseFormat(cfg.logFormat))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

func (cfg *config) loadProfiles() (*model.Profiles, error) {
	profiles, err := model.LoadProfiles(cfg.profileFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load profiles")
	}
	return profiles, nil
}

func (cfg *config) profile() (*model.BusinessProfile, error) {
	profiles, err := cfg.loadProfiles()
	if err != nil {
		return nil, err
	}
	return profiles.Resolve(cfg.profileName)
}

func (cfg *config) authContext() model.AuthContext {
	return model.AuthContext{
		AccessToken:     cfg.calendarAccessToken,
		RefreshToken:    cfg.calendarRefreshToken,
		ClientID:        cfg.oauthClientID,
		ClientSecret:    cfg.oauthClientSecret,
		CredentialsFile: cfg.calendarCredentials,
	}
}

// newLive returns nil without error when no speech model credential is
// set, so that the controller reports it as a configuration error on connect.
func (cfg *config) newLive(ctx context.Context) (adapter.Live, error) {
	cred := adapter.LiveCredential{
		APIKey:   cfg.geminiAPIKey,
		Project:  cfg.geminiProject,
		Location: cfg.geminiLocation,
	}
	if cred.APIKey == "" && cred.Project == "" {
		return nil, nil
	}
	return adapter.NewLive(ctx, cred, adapter.WithLiveModel(cfg.liveModel))
}

// newRepository returns the configured repository and its release function.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, func(), error) {
	switch strings.ToLower(cfg.repository) {
	case "", repoMemory:
		return repository.NewMemory(), func() {}, nil

	case repoFirestore:
		if cfg.firestoreProject == "" {
			return nil, nil, goerr.Wrap(model.ErrConfiguration, "firestore-project is required")
		}
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, func() { _ = repo.Close() }, nil

	case repoPostgres:
		if cfg.databaseURL == "" {
			return nil, nil, goerr.Wrap(model.ErrConfiguration, "database-url is required")
		}
		repo, err := repository.NewPostgres(ctx, cfg.databaseURL)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		return repo, repo.Close, nil

	default:
		return nil, nil, goerr.Wrap(model.ErrConfiguration, "unknown repository type", goerr.V("repository", cfg.repository))
	}
}

func (cfg *config) newArchive(ctx context.Context) (adapter.Storage, error) {
	if cfg.archiveBucket == "" {
		return nil, nil
	}
	storage, err := adapter.NewStorage(ctx, cfg.archiveBucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

func (cfg *config) newPolicy(ctx context.Context) (*policy.Booking, error) {
	p, err := policy.Load(ctx, cfg.policyDir)
	if err != nil {
		return nil, err
	}
	if files := p.Files(); len(files) > 0 {
		logging.From(ctx).Info("loaded booking policy", "files", files)
	}
	return p, nil
}

func (cfg *config) newGate() *audio.NoiseGate {
	g := audio.NewNoiseGate()
	if cfg.gateThreshold > 0 {
		g.Threshold = cfg.gateThreshold
	}
	return g
}

// toolsFactory builds the scheduling tools of a session against the
// profile's calendar, using the session's credentials.
func toolsFactory(repo repository.Repository, pol *policy.Booking) call.ToolsFactory {
	return func(ctx context.Context, profile *model.BusinessProfile, auth model.AuthContext) (call.Tools, error) {
		return newTools(ctx, profile, auth, repo, pol)
	}
}

func newTools(ctx context.Context, profile *model.BusinessProfile, auth model.AuthContext, repo repository.Repository, pol *policy.Booking) (*tool.Registry, error) {
	hours := schedule.ParseBusinessHours(profile.Hours, profile.Days, profile.Timezone)

	cal, err := adapter.NewCalendar(ctx, auth, profile.CalendarID, hours.Loc())
	if err != nil {
		return nil, err
	}

	opts := []schedule.Option{
		schedule.WithSlotDuration(time.Duration(profile.SlotMinutes) * time.Minute),
		schedule.WithBookingPolicy(pol),
	}
	if repo != nil {
		opts = append(opts, schedule.WithRepository(repo))
	}
	engine := schedule.New(hours, cal, cal, opts...)

	return tool.New(scheduling.New(engine, scheduling.WithServices(profile.Services))), nil
}
