package call_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/call"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type sink struct {
	mu   sync.Mutex
	sent []*genai.FunctionResponse
}

func (s *sink) respond(responses ...*genai.FunctionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, responses...)
	return nil
}

func TestGuardAdvance(t *testing.T) {
	var g call.Guard
	e := g.Current()
	gt.True(t, g.IsCurrent(e))

	next := g.Advance()
	gt.Equal(t, next, e+1)
	gt.False(t, g.IsCurrent(e))
	gt.True(t, g.IsCurrent(next))
}

func TestDispatcherExecute(t *testing.T) {
	testCases := map[string]struct {
		tool   *lookupTool
		name   string
		status model.ToolStatus
	}{
		"success": {
			tool:   &lookupTool{},
			name:   "lookup",
			status: model.ToolStatusSuccess,
		},
		"tool error": {
			tool:   &lookupTool{err: errors.New("provider down")},
			name:   "lookup",
			status: model.ToolStatusError,
		},
		"panic": {
			tool:   &lookupTool{panics: true},
			name:   "lookup",
			status: model.ToolStatusError,
		},
		"unknown tool": {
			tool:   &lookupTool{},
			name:   "missing",
			status: model.ToolStatusError,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var g call.Guard
			d := call.NewDispatcher(tool.New(tc.tool), &g, (&sink{}).respond)

			result := d.Execute(context.Background(), model.ToolCall{ID: "id-1", Name: tc.name})
			gt.Equal(t, result.ID, "id-1")
			gt.Equal(t, result.Status(), tc.status)
			if tc.status == model.ToolStatusError {
				gt.Map(t, result.Response).HasKey("message")
			}
		})
	}
}

func TestDispatcherDropsStaleResult(t *testing.T) {
	var g call.Guard
	out := &sink{}
	d := call.NewDispatcher(tool.New(&lookupTool{}), &g, out.respond)

	c := model.ToolCall{ID: "a", Name: "lookup", OriginEpoch: g.Current()}
	result := d.Execute(context.Background(), c)
	g.Advance()

	gt.False(t, d.Deliver(context.Background(), c, result))
	gt.A(t, out.sent).Length(0)

	fresh := model.ToolCall{ID: "b", Name: "lookup", OriginEpoch: g.Current()}
	gt.True(t, d.Deliver(context.Background(), fresh, d.Execute(context.Background(), fresh)))
	gt.A(t, out.sent).Length(1)
	gt.Equal(t, out.sent[0].ID, "b")
}

func TestDispatcherDeliverWaitsForInterrupt(t *testing.T) {
	var (
		g  call.Guard
		mu sync.Mutex
	)
	out := &sink{}
	d := call.NewDispatcher(tool.New(&lookupTool{}), &g, out.respond, call.WithDeliverLock(&mu))

	c := model.ToolCall{ID: "a", Name: "lookup", OriginEpoch: g.Current()}
	result := d.Execute(context.Background(), c)

	// An interruption is in progress and has not advanced the epoch yet.
	mu.Lock()
	delivered := make(chan bool, 1)
	go func() { delivered <- d.Deliver(context.Background(), c, result) }()

	select {
	case <-delivered:
		t.Fatal("result was delivered while the interruption held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	g.Advance()
	mu.Unlock()

	gt.False(t, <-delivered)
	out.mu.Lock()
	defer out.mu.Unlock()
	gt.A(t, out.sent).Length(0)
}

func TestDispatcherCancel(t *testing.T) {
	var g call.Guard
	out := &sink{}
	d := call.NewDispatcher(tool.New(&lookupTool{}), &g, out.respond)

	c := model.ToolCall{ID: "x", Name: "lookup", OriginEpoch: g.Current()}
	d.Cancel("x")
	gt.False(t, d.Deliver(context.Background(), c, d.Execute(context.Background(), c)))
	gt.A(t, out.sent).Length(0)
}

func TestDispatchAsync(t *testing.T) {
	var g call.Guard
	out := &sink{}
	var lines []string
	d := call.NewDispatcher(tool.New(&lookupTool{}), &g, out.respond,
		call.WithToolLog(func(_ model.LogType, text string) { lines = append(lines, text) }),
	)

	d.Dispatch(context.Background(), model.ToolCall{ID: "1", Name: "lookup", Args: map[string]any{"date": "2026-06-01"}, OriginEpoch: g.Current()})
	d.Wait()

	gt.A(t, out.sent).Length(1)
	gt.A(t, lines).Length(2)
	gt.Equal(t, lines[0], "lookup(date=2026-06-01)")
	gt.S(t, lines[1]).Contains("success")
}
