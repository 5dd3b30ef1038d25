package call

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Executor runs a single function call. *tool.Registry satisfies it.
type Executor interface {
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)
}

// Responder delivers tool results to the speech model.
type Responder func(responses ...*genai.FunctionResponse) error

// Dispatcher executes tool calls off the audio path and delivers the
// results only while the epoch they started under is still current.
type Dispatcher struct {
	tools   Executor
	guard   interface{ IsCurrent(uint64) bool }
	respond Responder

	onLog    func(model.LogType, string)
	onResult func(*model.ToolResult)

	// held across the epoch check and the send
	deliverMu sync.Locker

	cancelled sync.Map
	wg        sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

// WithToolLog receives a line for every call and delivered result.
func WithToolLog(f func(model.LogType, string)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onLog = f
	}
}

// WithResultHook is called for every result that reaches the model.
func WithResultHook(f func(*model.ToolResult)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onResult = f
	}
}

// WithDeliverLock shares the lock that interruption holds while it
// advances the epoch, so no result can be sent between the two.
func WithDeliverLock(l sync.Locker) DispatcherOption {
	return func(d *Dispatcher) {
		d.deliverMu = l
	}
}

func NewDispatcher(tools Executor, guard interface{ IsCurrent(uint64) bool }, respond Responder, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		tools:     tools,
		guard:     guard,
		respond:   respond,
		onLog:     func(model.LogType, string) {},
		onResult:  func(*model.ToolResult) {},
		deliverMu: &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs call in its own goroutine. Tool work is not cancelled when
// the session ends; a late result is simply dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, call model.ToolCall) {
	d.onLog(model.LogTool, describeCall(call))

	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		result := d.Execute(ctx, call)
		d.Deliver(ctx, call, result)
	}()
}

// Execute runs call and always returns a well-formed result. Errors and
// panics become {status:"error"} responses.
func (d *Dispatcher) Execute(ctx context.Context, call model.ToolCall) (result *model.ToolResult) {
	started := time.Now()
	result = &model.ToolResult{ID: call.ID, Name: call.Name}

	defer func() {
		if r := recover(); r != nil {
			err := goerr.Wrap(model.ErrToolExecution, "tool panicked",
				goerr.V("name", call.Name),
				goerr.V("panic", fmt.Sprint(r)))
			logging.From(ctx).Error("tool panicked", "error", err)
			result.Response = model.ErrorResponse("internal error while running " + call.Name)
		}
		metricToolDuration.WithLabelValues(call.Name, string(result.Status())).Observe(time.Since(started).Seconds())
	}()

	resp, err := d.tools.Execute(ctx, genai.FunctionCall{
		ID:   call.ID,
		Name: call.Name,
		Args: call.Args,
	})
	if err != nil {
		err = goerr.Wrap(model.ErrToolExecution, "tool failed",
			goerr.V("name", call.Name),
			goerr.V("cause", err.Error()))
		logging.From(ctx).Warn("tool failed", "error", err)
		result.Response = model.ErrorResponse(err.Error())
		return result
	}
	if resp == nil || resp.Response == nil {
		result.Response = model.ErrorResponse("tool returned no response")
		return result
	}

	result.Response = resp.Response
	return result
}

func (d *Dispatcher) send(call model.ToolCall, result *model.ToolResult) (bool, error) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	_, cancelled := d.cancelled.LoadAndDelete(call.ID)
	if cancelled || !d.guard.IsCurrent(call.OriginEpoch) {
		return false, nil
	}

	err := d.respond(&genai.FunctionResponse{
		ID:       result.ID,
		Name:     result.Name,
		Response: result.Response,
	})
	return err == nil, err
}

// Deliver sends result to the model unless the epoch advanced or the call
// was cancelled since it started. It reports whether the result was sent.
func (d *Dispatcher) Deliver(ctx context.Context, call model.ToolCall, result *model.ToolResult) bool {
	sent, err := d.send(call, result)
	if err != nil {
		logging.From(ctx).Warn("failed to send tool response", "error", err, "name", call.Name)
		return false
	}
	if !sent {
		metricStaleToolResults.Inc()
		logging.From(ctx).Debug("dropped stale tool result",
			"id", call.ID,
			"name", call.Name,
			"origin_epoch", call.OriginEpoch)
		return false
	}

	d.onLog(model.LogTool, describeResult(result))
	d.onResult(result)
	return true
}

// Cancel marks calls whose results must not be delivered.
func (d *Dispatcher) Cancel(ids ...string) {
	for _, id := range ids {
		d.cancelled.Store(id, struct{}{})
	}
}

// Wait blocks until every dispatched call has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func describeCall(call model.ToolCall) string {
	keys := make([]string, 0, len(call.Args))
	for k := range call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%v", k, call.Args[k]))
	}
	return fmt.Sprintf("%s(%s)", call.Name, strings.Join(args, ", "))
}

func describeResult(result *model.ToolResult) string {
	line := fmt.Sprintf("%s -> %s", result.Name, result.Status())
	if msg, ok := result.Response["message"].(string); ok && msg != "" {
		line += ": " + msg
	}
	return line
}
