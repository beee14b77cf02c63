package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"query-visualizer/internal/analyzer"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/logging"
	"query-visualizer/internal/renderer"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"
)

var (
	// ErrBusy 已有提交在处理中
	ErrBusy = errors.New("a query is already pending")

	// ErrEmptyPrompt 提示词为空
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// State 会话状态
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateEmpty   State = "empty"
	StateFailed  State = "failed"
)

const (
	eventSubmit  statekit.EventType = "SUBMIT"
	eventSucceed statekit.EventType = "SUCCEED"
	eventEmpty   statekit.EventType = "EMPTY"
	eventFail    statekit.EventType = "FAIL"
)

// Status 当前状态快照，通过 /api/status 与 websocket 推送
type Status struct {
	State     State  `json:"state"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Outcome 一次提交的结果
type Outcome struct {
	RequestID string
	State     State
	Response  *Response
	Charts    []chart.Spec
	Duration  time.Duration
}

// machineContext 状态机上下文
type machineContext struct {
	Transitions int
	LastEvent   statekit.EventType
}

func recordTransition(ctx **machineContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).Transitions++
	(*ctx).LastEvent = event.Type
}

// newMachine idle -> loading -> ready | empty | failed，终态可再次提交
func newMachine() (*statekit.MachineConfig[*machineContext], error) {
	return statekit.NewMachine[*machineContext]("session").
		WithInitial(statekit.StateID(StateIdle)).
		WithContext(&machineContext{}).
		WithAction("recordTransition", recordTransition).
		State(statekit.StateID(StateIdle)).
			On(eventSubmit).Target(statekit.StateID(StateLoading)).Do("recordTransition").
			Done().
		State(statekit.StateID(StateLoading)).
			On(eventSucceed).Target(statekit.StateID(StateReady)).Do("recordTransition").
			On(eventEmpty).Target(statekit.StateID(StateEmpty)).Do("recordTransition").
			On(eventFail).Target(statekit.StateID(StateFailed)).Do("recordTransition").
			Done().
		State(statekit.StateID(StateReady)).
			On(eventSubmit).Target(statekit.StateID(StateLoading)).Do("recordTransition").
			Done().
		State(statekit.StateID(StateEmpty)).
			On(eventSubmit).Target(statekit.StateID(StateLoading)).Do("recordTransition").
			Done().
		State(statekit.StateID(StateFailed)).
			On(eventSubmit).Target(statekit.StateID(StateLoading)).Do("recordTransition").
			Done().
		Build()
}

// Option 控制器选项
type Option func(*Controller)

// WithTimeout 单次提交超时
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSelector 替换图表推断器
func WithSelector(s *analyzer.Selector) Option {
	return func(c *Controller) {
		c.selector = s
	}
}

// Controller 会话控制器：同一时刻只处理一个提交
type Controller struct {
	querier  Querier
	selector *analyzer.Selector
	view     *renderer.Session
	timeout  time.Duration

	mu      sync.Mutex
	machine *statekit.Interpreter[*machineContext]
	pending string
	lastErr string
	subs    map[int]chan Status
	nextSub int
}

// NewController 创建控制器
func NewController(querier Querier, view *renderer.Session, opts ...Option) (*Controller, error) {
	machine, err := newMachine()
	if err != nil {
		return nil, fmt.Errorf("build session machine: %w", err)
	}
	if view == nil {
		view = renderer.NewSession()
	}

	c := &Controller{
		querier:  querier,
		selector: analyzer.NewSelector(),
		view:     view,
		timeout:  90 * time.Second,
		machine:  statekit.NewInterpreter(machine),
		subs:     make(map[int]chan Status),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine.Start()
	return c, nil
}

// Submit 处理一次提交
// 无论成功、空结果、失败还是 panic，loading 状态都会被释放。
func (c *Controller) Submit(ctx context.Context, prompt string) (*Outcome, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	id, err := c.acquire()
	if err != nil {
		return nil, err
	}
	released := false
	defer func() {
		if !released {
			c.view.Teardown()
			c.finish(id, StateFailed, "submission aborted")
		}
	}()

	start := time.Now()
	logging.Info().
		Add(logging.RequestID(id)).
		Add(logging.Str("prompt", prompt)).
		Msg("query submitted")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.querier.Query(ctx, prompt)
	if err != nil {
		c.view.Teardown()
		released = c.finish(id, StateFailed, err.Error())
		return nil, err
	}

	outcome := &Outcome{RequestID: id, Response: resp}
	if resp.Error != "" {
		c.view.Teardown()
		outcome.State = StateFailed
		outcome.Duration = time.Since(start)
		released = c.finish(id, StateFailed, resp.Error)
		return outcome, nil
	}

	specs := c.selector.Select(resp.Results)
	if err := c.view.Mount(specs, resp.Results); err != nil {
		released = c.finish(id, StateFailed, err.Error())
		return nil, fmt.Errorf("render: %w", err)
	}
	resp.Charts = specs

	outcome.Charts = specs
	outcome.State = StateReady
	if resp.Results.Empty() {
		outcome.State = StateEmpty
	}
	outcome.Duration = time.Since(start)
	released = c.finish(id, outcome.State, "")

	logging.Info().
		Add(logging.RequestID(id)).
		Add(logging.State(string(outcome.State))).
		Add(logging.Rows(resp.Results.Len())).
		Add(logging.Charts(len(specs))).
		Add(logging.Duration(outcome.Duration)).
		Msg("query completed")
	return outcome, nil
}

// acquire 占用提交令牌并进入 loading
func (c *Controller) acquire() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != "" {
		return "", ErrBusy
	}
	c.pending = uuid.NewString()
	c.lastErr = ""
	c.machine.Send(statekit.Event{Type: eventSubmit})
	c.notify()
	return c.pending, nil
}

// finish 释放令牌并进入结束状态；令牌不匹配时不做任何事
func (c *Controller) finish(id string, state State, msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != id {
		return false
	}

	event := eventSucceed
	switch state {
	case StateEmpty:
		event = eventEmpty
	case StateFailed:
		event = eventFail
		logging.Warn().
			Add(logging.RequestID(id)).
			Add(logging.Str("error", msg)).
			Msg("query failed")
	}

	c.pending = ""
	c.lastErr = msg
	c.machine.Send(statekit.Event{Type: event})
	c.notify()
	return true
}

// Pending 是否有提交在处理中
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != ""
}

// Status 当前状态
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status()
}

func (c *Controller) status() Status {
	return Status{
		State:     State(c.machine.State().Value),
		RequestID: c.pending,
		Error:     c.lastErr,
	}
}

// Subscribe 订阅状态变化，立即收到当前状态
// 消费过慢的订阅者会被移除并关闭其通道。
func (c *Controller) Subscribe() (<-chan Status, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Status, 8)
	ch <- c.status()
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
}

// notify 调用方持有 c.mu
func (c *Controller) notify() {
	st := c.status()
	for id, ch := range c.subs {
		select {
		case ch <- st:
		default:
			close(ch)
			delete(c.subs, id)
		}
	}
}

// View 当前可视化会话
func (c *Controller) View() *renderer.Session {
	return c.view
}

// Render 输出报告页：失败时输出错误面板
func (c *Controller) Render(w io.Writer) error {
	st := c.Status()
	if st.State == StateFailed {
		return renderer.RenderError(w, st.Error)
	}
	return c.view.Render(w)
}
