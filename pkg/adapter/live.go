package adapter

import (
	"context"
	"sync"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const DefaultLiveModel = "gemini-2.0-flash-live-001"

// LiveConfig is the per-session setup sent during the handshake.
type LiveConfig struct {
	SystemInstruction string
	Tools             []*genai.Tool
	Voice             string
	Language          string
}

// Live opens bidirectional streaming sessions with the speech model.
type Live interface {
	Connect(ctx context.Context, cfg *LiveConfig) (LiveSession, error)
}

// LiveSession is one open streaming channel. Send methods are safe for
// concurrent use. Receive must be called from a single goroutine.
type LiveSession interface {
	SendAudio(pcm []byte) error
	SendToolResponses(responses ...*genai.FunctionResponse) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type LiveClient struct {
	client *genai.Client
	model  string
}

type LiveOption func(*LiveClient)

func WithLiveModel(name string) LiveOption {
	return func(l *LiveClient) {
		if name != "" {
			l.model = name
		}
	}
}

// LiveCredential selects the backend. APIKey uses the Gemini API, otherwise
// Project and Location select Vertex AI with application default credentials.
type LiveCredential struct {
	APIKey   string
	Project  string
	Location string
}

func (x LiveCredential) Validate() error {
	if x.APIKey == "" && x.Project == "" {
		return goerr.Wrap(model.ErrConfiguration, "either a Gemini API key or a Google Cloud project is required")
	}
	if x.APIKey == "" && x.Location == "" {
		return goerr.Wrap(model.ErrConfiguration, "Vertex AI requires a location", goerr.V("project", x.Project))
	}
	return nil
}

func NewLive(ctx context.Context, cred LiveCredential, opts ...LiveOption) (*LiveClient, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	}
	if cred.APIKey != "" {
		cfg.APIKey = cred.APIKey
		cfg.Backend = genai.BackendGeminiAPI
	} else {
		cfg.Project = cred.Project
		cfg.Location = cred.Location
		cfg.Backend = genai.BackendVertexAI
		cfg.HTTPOptions.APIVersion = "v1beta1"
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "failed to create genai client", goerr.V("cause", err.Error()))
	}

	l := &LiveClient{
		client: client,
		model:  DefaultLiveModel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *LiveClient) Connect(ctx context.Context, cfg *LiveConfig) (LiveSession, error) {
	connectConfig := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		Tools:                    cfg.Tools,
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.SystemInstruction != "" {
		connectConfig.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if cfg.Voice != "" || cfg.Language != "" {
		speech := &genai.SpeechConfig{LanguageCode: cfg.Language}
		if cfg.Voice != "" {
			speech.VoiceConfig = &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			}
		}
		connectConfig.SpeechConfig = speech
	}

	session, err := l.client.Live.Connect(ctx, l.model, connectConfig)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "failed to open live session",
			goerr.V("model", l.model),
			goerr.V("cause", err.Error()))
	}

	return &liveSession{session: session}, nil
}

type liveSession struct {
	session *genai.Session
	sendMu  sync.Mutex
}

func (s *liveSession) SendAudio(pcm []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: model.CaptureMIMEType},
	})
	if err != nil {
		return goerr.Wrap(model.ErrTransport, "failed to send audio", goerr.V("cause", err.Error()))
	}
	return nil
}

func (s *liveSession) SendToolResponses(responses ...*genai.FunctionResponse) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	err := s.session.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses})
	if err != nil {
		return goerr.Wrap(model.ErrTransport, "failed to send tool response", goerr.V("cause", err.Error()))
	}
	return nil
}

func (s *liveSession) Receive() (*genai.LiveServerMessage, error) {
	msg, err := s.session.Receive()
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "live session closed", goerr.V("cause", err.Error()))
	}
	return msg, nil
}

func (s *liveSession) Close() error {
	if err := s.session.Close(); err != nil {
		return goerr.Wrap(err, "failed to close live session")
	}
	return nil
}
