package call_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/adapter"
	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/call"
	"google.golang.org/genai"
)

type mockChannel struct {
	msgs      chan *genai.LiveServerMessage
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	responses []*genai.FunctionResponse
	audioSent atomic.Int32
}

func newMockChannel() *mockChannel {
	return &mockChannel{
		msgs:   make(chan *genai.LiveServerMessage, 16),
		closed: make(chan struct{}),
	}
}

func (m *mockChannel) SendAudio(pcm []byte) error {
	select {
	case <-m.closed:
		return errors.New("closed")
	default:
		m.audioSent.Add(1)
		return nil
	}
}

func (m *mockChannel) SendToolResponses(responses ...*genai.FunctionResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
	return nil
}

func (m *mockChannel) Responses() []*genai.FunctionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*genai.FunctionResponse(nil), m.responses...)
}

func (m *mockChannel) Receive() (*genai.LiveServerMessage, error) {
	select {
	case msg := <-m.msgs:
		return msg, nil
	case <-m.closed:
		return nil, errors.New("connection closed")
	}
}

func (m *mockChannel) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockChannel) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

type mockLive struct {
	calls    atomic.Int32
	release  chan struct{}
	err      error
	mu       sync.Mutex
	channels []*mockChannel
	configs  []*adapter.LiveConfig
}

func (m *mockLive) Connect(ctx context.Context, cfg *adapter.LiveConfig) (adapter.LiveSession, error) {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}

	ch := newMockChannel()
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()
	return ch, nil
}

func (m *mockLive) Channel(i int) *mockChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[i]
}

type mockSpeaker struct {
	closed atomic.Bool
	resets atomic.Int32

	mu      sync.Mutex
	written []byte
}

func (m *mockSpeaker) Write(p []byte) (int, error) {
	if m.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, p...)
	return len(p), nil
}

func (m *mockSpeaker) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

func (m *mockSpeaker) Reset() error {
	m.resets.Add(1)
	return nil
}

func (m *mockSpeaker) Close() error {
	m.closed.Store(true)
	return nil
}

type mockDevices struct {
	micErr   error
	micCalls atomic.Int32
	mu       sync.Mutex
	writers  []*io.PipeWriter
	speakers []*mockSpeaker
}

func (m *mockDevices) Microphone(ctx context.Context) (io.ReadCloser, error) {
	m.micCalls.Add(1)
	if m.micErr != nil {
		return nil, m.micErr
	}
	r, w := io.Pipe()
	m.mu.Lock()
	m.writers = append(m.writers, w)
	m.mu.Unlock()
	return r, nil
}

func (m *mockDevices) Speaker(ctx context.Context) (adapter.Speaker, error) {
	sp := &mockSpeaker{}
	m.mu.Lock()
	m.speakers = append(m.speakers, sp)
	m.mu.Unlock()
	return sp, nil
}

func (m *mockDevices) SpeakerAt(i int) *mockSpeaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakers[i]
}

// feedMic writes frames into the i-th microphone until it is closed.
func (m *mockDevices) feedMic(i int) <-chan struct{} {
	m.mu.Lock()
	w := m.writers[i]
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		frame := make([]byte, 640)
		for {
			if _, err := w.Write(frame); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	return done
}

type mockRepo struct {
	mu   sync.Mutex
	logs []*model.CallLog
}

func (m *mockRepo) PutCallLog(ctx context.Context, log *model.CallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockRepo) Logs() []*model.CallLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.CallLog(nil), m.logs...)
}

// lookupTool answers "lookup" calls, optionally waiting for release first.
type lookupTool struct {
	started chan string
	release chan struct{}
	panics  bool
	err     error
}

func (x *lookupTool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{Name: "lookup", Description: "test lookup"}},
	}
}

func (x *lookupTool) Prompt(ctx context.Context) string {
	return "Use lookup when asked."
}

func (x *lookupTool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if x.started != nil {
		x.started <- fc.ID
	}
	if x.release != nil {
		<-x.release
	}
	if x.panics {
		panic("boom")
	}
	if x.err != nil {
		return nil, x.err
	}
	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"status": "success", "session": string(tool.SessionIDFrom(ctx))},
	}, nil
}

func factoryOf(tools ...tool.Tool) call.ToolsFactory {
	return func(ctx context.Context, profile *model.BusinessProfile, auth model.AuthContext) (call.Tools, error) {
		return tool.New(tools...), nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitDone(t *testing.T, s *call.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}
