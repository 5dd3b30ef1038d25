package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/adapter"
	"github.com/alokranjan04/admin-voice-agent/pkg/audio"
	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const persistTimeout = 30 * time.Second

// Tools is what a session needs from its tool set. *tool.Registry satisfies it.
type Tools interface {
	Executor
	Prompter
	Specs() []*genai.Tool
}

// ToolsFactory builds the tools for one session from its profile and credentials.
type ToolsFactory func(ctx context.Context, profile *model.BusinessProfile, auth model.AuthContext) (Tools, error)

// CallLogRepository stores finished calls.
type CallLogRepository interface {
	PutCallLog(ctx context.Context, log *model.CallLog) error
}

// Config is the per-call configuration passed to Connect.
type Config struct {
	Profile *model.BusinessProfile
	Auth    model.AuthContext
}

func (x *Config) Validate() error {
	if x.Profile == nil {
		return goerr.Wrap(model.ErrConfiguration, "business profile is required")
	}
	return x.Auth.Validate()
}

// Status is a snapshot of the controller.
type Status struct {
	State     model.SessionState `json:"state"`
	SessionID model.SessionID    `json:"session_id,omitempty"`
	Profile   string             `json:"profile,omitempty"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	Epoch     uint64             `json:"epoch"`
}

// Controller owns the lifecycle of at most one live session.
type Controller struct {
	live    adapter.Live
	devices adapter.Devices
	tools   ToolsFactory

	repo    CallLogRepository
	archive adapter.Storage
	gate    *audio.NoiseGate
	lead    time.Duration
	now     func() time.Time

	guard Guard
	hub   *eventHub

	mu      sync.Mutex
	current *Session
	state   model.SessionState
}

type Option func(*Controller)

func WithCallLogRepository(repo CallLogRepository) Option {
	return func(c *Controller) {
		c.repo = repo
	}
}

// WithArchive stores the transcript of every finished call as JSON.
func WithArchive(s adapter.Storage) Option {
	return func(c *Controller) {
		c.archive = s
	}
}

func WithNoiseGate(g *audio.NoiseGate) Option {
	return func(c *Controller) {
		c.gate = g
	}
}

func WithPlaybackLead(d time.Duration) Option {
	return func(c *Controller) {
		c.lead = d
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller. A nil live means speech model credentials are
// missing and every Connect fails with a configuration error.
func New(live adapter.Live, devices adapter.Devices, tools ToolsFactory, opts ...Option) *Controller {
	c := &Controller{
		live:    live,
		devices: devices,
		tools:   tools,
		gate:    audio.NewNoiseGate(),
		lead:    audio.DefaultLead,
		now:     time.Now,
		hub:     newEventHub(),
		state:   model.SessionDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.publishState(c.state)
	return c
}

// Subscribe starts delivering host events. The current state is sent first.
func (c *Controller) Subscribe() *Subscription {
	sub := c.hub.subscribe()

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	select {
	case sub.sub.status <- state:
	default:
	}
	return sub
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Epoch: c.guard.Current()}
	if s := c.current; s != nil {
		started := s.StartedAt
		st.SessionID = s.ID
		st.Profile = s.Profile
		st.StartedAt = &started
	}
	return st
}

// Connect starts a new session, ending any prior one first. It returns once
// the session is Connected.
func (c *Controller) Connect(ctx context.Context, cfg Config) (*Session, error) {
	if c.live == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "speech model credentials are not configured")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tools, err := c.tools(ctx, cfg.Profile, cfg.Auth)
	if err != nil {
		return nil, wrapAs(err, model.ErrConfiguration, "failed to prepare tools")
	}
	instruction, err := BuildInstruction(ctx, cfg.Profile, tools, c.now())
	if err != nil {
		return nil, wrapAs(err, model.ErrConfiguration, "failed to build system instruction")
	}

	s := newSession(ctx, cfg.Profile, c.now())
	ctx = logging.With(ctx, logging.From(ctx).With("session_id", s.ID.String()))
	s.ctx = logging.With(s.ctx, logging.From(ctx))
	logger := logging.From(ctx)

	c.mu.Lock()
	if prev := c.current; prev != nil {
		c.endLocked(prev, "replaced by a new connection", "replaced")
	}
	c.current = s
	c.guard.Advance()
	c.setStateLocked(model.SessionConnecting)
	c.mu.Unlock()
	metricSessionsStarted.Inc()

	logger.Info("connecting", "profile", s.Profile)

	mic, err := c.devices.Microphone(ctx)
	if err != nil {
		c.end(s, "microphone unavailable", "device")
		return nil, wrapAs(err, model.ErrDevice, "failed to acquire microphone")
	}
	if !s.hold(mic) {
		_ = mic.Close()
		return nil, abandoned(s)
	}

	speaker, err := c.devices.Speaker(ctx)
	if err != nil {
		c.end(s, "speaker unavailable", "device")
		return nil, wrapAs(err, model.ErrDevice, "failed to acquire speaker")
	}
	if !s.hold(speaker) {
		_ = speaker.Close()
		return nil, abandoned(s)
	}

	channel, err := c.live.Connect(ctx, &adapter.LiveConfig{
		SystemInstruction: instruction,
		Tools:             tools.Specs(),
		Voice:             cfg.Profile.Voice,
		Language:          cfg.Profile.Language,
	})
	if err != nil {
		c.end(s, "handshake failed", "transport")
		return nil, wrapAs(err, model.ErrTransport, "failed to connect to speech model")
	}
	if !s.hold(channel) {
		// The session ended while the handshake was pending.
		_ = channel.Close()
		metricZombieChannels.Inc()
		logger.Info("closed channel of abandoned session")
		return nil, abandoned(s)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Closed() {
		return nil, abandoned(s)
	}
	c.start(s, channel, mic, speaker, tools)
	c.setStateLocked(model.SessionConnected)
	c.record(s, model.LogSystem, "connected as "+cfg.Profile.BusinessName)
	logger.Info("connected")

	return s, nil
}

// Disconnect ends the current session, if any, and returns it.
func (c *Controller) Disconnect() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current
	if s == nil {
		return nil
	}
	c.endLocked(s, "disconnected by host", "host")
	return s
}

func (c *Controller) start(s *Session, channel adapter.LiveSession, mic io.Reader, speaker adapter.Speaker, tools Tools) {
	logger := logging.From(s.ctx)
	guard := sessionGuard{guard: &c.guard, s: s}

	s.channel = channel
	s.queue = audio.NewPlaybackQueue(c.lead)
	s.player = audio.NewPlayer(s.queue, speaker, c.now)
	s.decoder = audio.NewDecoder(0,
		func(chunk *model.AudioChunk) { c.play(s, chunk) },
		func(err error) { logger.Warn("failed to decode model audio", "error", err) },
	)
	s.dispatcher = NewDispatcher(tools, guard, channel.SendToolResponses,
		WithDeliverLock(&s.playMu),
		WithToolLog(func(t model.LogType, text string) { c.record(s, t, text) }),
		WithResultHook(func(r *model.ToolResult) {
			if r.Name == model.ToolCreateBooking && r.Response["success"] == true {
				s.addBooking()
			}
		}),
	)

	capture := audio.NewCapture(mic, guard,
		func(ctx context.Context, frame *model.Frame) error {
			return channel.SendAudio(audio.EncodePCM16(frame.Samples))
		},
		audio.WithGate(c.gate),
		audio.WithPlaybackActive(func() bool { return s.queue.Active(c.now()) }),
		audio.WithVolume(c.hub.volume),
		audio.WithGatedHook(metricGatedFrames.Inc),
	)

	s.goRun(capture.Run, func(err error) { c.fail(s, "microphone failed", "device", err) })
	s.goRun(s.player.Run, func(err error) { c.fail(s, "speaker failed", "device", err) })
	s.goRun(func(ctx context.Context) error {
		s.decoder.Run(ctx)
		return nil
	}, nil)
	s.goRun(func(ctx context.Context) error {
		return c.receive(ctx, s)
	}, func(err error) { c.fail(s, "connection closed", "transport", err) })
}

func (c *Controller) receive(ctx context.Context, s *Session) error {
	ctx = tool.WithSessionID(ctx, s.ID)
	for {
		msg, err := s.channel.Receive()
		if err != nil {
			return err
		}
		c.handle(ctx, s, msg)
	}
}

func (c *Controller) handle(ctx context.Context, s *Session, msg *genai.LiveServerMessage) {
	if msg.SetupComplete != nil {
		logging.From(ctx).Debug("setup complete")
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			c.interrupt(ctx, s)
		}
		if t := sc.InputTranscription; t != nil {
			s.userText.WriteString(t.Text)
			if t.Finished {
				c.flushText(s, model.LogUser, &s.userText)
			}
		}
		if t := sc.OutputTranscription; t != nil {
			s.modelText.WriteString(t.Text)
			if t.Finished {
				c.flushText(s, model.LogModel, &s.modelText)
			}
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					continue
				}
				s.decoder.Submit(ctx, part.InlineData.Data, part.InlineData.MIMEType, c.guard.Current())
			}
		}
		if sc.TurnComplete || sc.Interrupted {
			c.flushText(s, model.LogUser, &s.userText)
			c.flushText(s, model.LogModel, &s.modelText)
		}
	}

	if tc := msg.ToolCall; tc != nil {
		c.flushText(s, model.LogUser, &s.userText)
		for _, fc := range tc.FunctionCalls {
			s.dispatcher.Dispatch(ctx, model.ToolCall{
				ID:          fc.ID,
				Name:        fc.Name,
				Args:        fc.Args,
				OriginEpoch: c.guard.Current(),
			})
		}
	}

	if cancel := msg.ToolCallCancellation; cancel != nil {
		s.dispatcher.Cancel(cancel.IDs...)
	}

	if msg.GoAway != nil {
		c.record(s, model.LogSystem, fmt.Sprintf("server will close the connection in %s", msg.GoAway.TimeLeft))
	}
}

// interrupt stops model speech immediately. Audio decoded and tool results
// computed before this point are discarded by the epoch check.
func (c *Controller) interrupt(ctx context.Context, s *Session) {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	c.guard.Advance()
	n, err := s.player.Interrupt()
	if err != nil {
		logging.From(ctx).Warn("failed to reset speaker", "error", err)
	}
	metricInterruptions.Inc()
	metricFlushedChunks.Add(float64(n))
	logging.From(ctx).Debug("interrupted", "flushed", n)
}

func (c *Controller) play(s *Session, chunk *model.AudioChunk) {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	if s.Closed() || !c.guard.IsCurrent(chunk.OriginEpoch) {
		metricStaleAudio.Inc()
		return
	}
	s.queue.Schedule(chunk, c.now())
}

func (c *Controller) flushText(s *Session, t model.LogType, b *strings.Builder) {
	text := strings.TrimSpace(b.String())
	b.Reset()
	if text != "" {
		c.record(s, t, text)
	}
}

func (c *Controller) record(s *Session, t model.LogType, text string) {
	entry := &model.LogEntry{Type: t, Text: text, Timestamp: c.now()}
	s.append(entry)
	c.hub.log(*entry)
	logging.From(s.ctx).Debug("call log", "type", t, "text", text)
}

func (c *Controller) fail(s *Session, reason, cause string, err error) {
	logging.From(s.ctx).Warn("session ended", "reason", reason, "error", err)
	c.end(s, reason, cause)
}

func (c *Controller) end(s *Session, reason, cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked(s, reason, cause)
}

// endLocked stops capture and playback, closes the channel and advances
// the epoch. Persistence runs in the background once the goroutines exit.
func (c *Controller) endLocked(s *Session, reason, cause string) {
	if !s.close(reason, c.now()) {
		return
	}

	if s.queue != nil {
		metricFlushedChunks.Add(float64(s.queue.Flush(c.now())))
	}
	c.guard.Advance()
	metricSessionEnds.WithLabelValues(cause).Inc()
	c.record(s, model.LogSystem, "disconnected: "+reason)

	if c.current == s {
		c.current = nil
		c.setStateLocked(model.SessionDisconnected)
	}

	go c.finish(s)
}

func (c *Controller) finish(s *Session) {
	defer close(s.done)

	s.wg.Wait()
	if s.dispatcher != nil {
		s.dispatcher.Wait()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), persistTimeout)
	defer cancel()
	logger := logging.From(ctx)

	callLog := s.CallLog()
	if c.repo != nil {
		if err := c.repo.PutCallLog(ctx, callLog); err != nil {
			logger.Error("failed to save call log", "error", err)
		}
	}
	if c.archive != nil {
		if err := c.archiveLog(ctx, callLog); err != nil {
			logger.Error("failed to archive transcript", "error", err)
		}
	}
	logger.Info("session finished", "reason", callLog.EndReason, "bookings", callLog.BookingCount)
}

// ArchiveKey is the object key a call transcript is stored under.
func ArchiveKey(log *model.CallLog) string {
	return fmt.Sprintf("calls/%s/%s.json", log.StartedAt.UTC().Format("2006/01/02"), log.SessionID)
}

func (c *Controller) archiveLog(ctx context.Context, log *model.CallLog) error {
	w, err := c.archive.Put(ctx, ArchiveKey(log))
	if err != nil {
		return goerr.Wrap(err, "failed to open archive writer", goerr.V("session_id", log.SessionID))
	}
	if err := json.NewEncoder(w).Encode(log); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to encode call log", goerr.V("session_id", log.SessionID))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit transcript", goerr.V("session_id", log.SessionID))
	}
	return nil
}

func (c *Controller) setStateLocked(state model.SessionState) {
	c.state = state
	c.publishState(state)
}

func (c *Controller) publishState(state model.SessionState) {
	for _, st := range []model.SessionState{model.SessionDisconnected, model.SessionConnecting, model.SessionConnected} {
		v := 0.0
		if st == state {
			v = 1
		}
		metricSessionState.WithLabelValues(string(st)).Set(v)
	}
	c.hub.status(state)
}

func abandoned(s *Session) error {
	return goerr.Wrap(model.ErrTransport, "session was disconnected while connecting",
		goerr.V("session_id", s.ID),
		goerr.V("reason", s.EndReason()))
}

// wrapAs keeps err's category if it has one and assigns kind otherwise.
func wrapAs(err error, kind error, msg string) error {
	for _, k := range []error{model.ErrConfiguration, model.ErrDevice, model.ErrTransport, model.ErrProviderAuth} {
		if errors.Is(err, k) {
			return goerr.Wrap(err, msg)
		}
	}
	return goerr.Wrap(kind, msg, goerr.V("cause", err.Error()))
}
