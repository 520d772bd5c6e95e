// Package agent implements the per-agent runtime: a listen loop that turns
// channel traffic into transcript turns, and a decide loop that consults the
// model, dispatches role-gated tools and publishes through the gate.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/providers"
	"github.com/dayuer/officebot/internal/roles"
	"github.com/dayuer/officebot/internal/timeline"
	"github.com/dayuer/officebot/internal/tools"
	"github.com/dayuer/officebot/internal/utils"
)

// UnauthorizedResult is the tool turn recorded for a call outside the role.
const UnauthorizedResult = "Unauthorized tool usage."

// maxToolResult caps a tool turn so one report cannot crowd out the window.
const maxToolResult = 4000

var (
	// ErrFatal marks the errors that end an agent's lifecycle.
	ErrFatal = errors.New("agent fatal error")

	ErrAlreadyStarted = errors.New("agent already started")
)

// State is the lifecycle phase of an agent.
type State int32

const (
	Starting State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Config holds per-agent settings.
type Config struct {
	Name    string
	Role    roles.Role
	Channel string
	Persona string

	Model       string
	MaxTokens   int
	Temperature float64

	PollInterval time.Duration
	Cooldown     time.Duration
	TurnDelay    time.Duration
	ErrorBackoff time.Duration
	MaxFailures  int

	MemoryWindow  int
	ActivityLimit int
}

func (c *Config) applyDefaults() {
	if c.Channel == "" {
		c.Channel = "General"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	if c.TurnDelay <= 0 {
		c.TurnDelay = c.Cooldown
		if c.TurnDelay <= 0 {
			c.TurnDelay = 2 * time.Second
		}
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.MemoryWindow <= 0 {
		c.MemoryWindow = 20
	}
	if c.ActivityLimit <= 0 {
		c.ActivityLimit = 200
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
}

// Journal receives the audit trail. Implemented by *timeline.Service.
type Journal interface {
	RecordActivity(ctx context.Context, a timeline.Activity) error
	RecordToolCall(ctx context.Context, c timeline.ToolCall) error
}

// Journals fans every record out to each journal, joining their errors.
type Journals []Journal

func (js Journals) RecordActivity(ctx context.Context, a timeline.Activity) error {
	var errs []error
	for _, j := range js {
		if err := j.RecordActivity(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (js Journals) RecordToolCall(ctx context.Context, c timeline.ToolCall) error {
	var errs []error
	for _, j := range js {
		if err := j.RecordToolCall(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deps are the shared collaborators of every agent.
type Deps struct {
	Bus      *bus.ChannelBus
	Provider providers.LLMProvider
	Roles    *roles.Registry
	Store    tools.EmployeeStore
	Journal  Journal
}

// Agent is one autonomous participant on the bus.
type Agent struct {
	cfg      Config
	bus      *bus.ChannelBus
	provider providers.LLMProvider
	roles    *roles.Registry
	tools    *tools.Registry
	journal  Journal
	allowed  []string

	gate     *Gate
	activity *ActivityLog

	// mu guards channel, cursor and transcript.
	mu         sync.Mutex
	channel    string
	cursor     bus.Cursor
	transcript *Transcript

	state   atomic.Int32
	started atomic.Bool
	cancel  context.CancelFunc
	cancMu  sync.Mutex
	now     func() time.Time
}

// New validates the role eagerly and wires the agent's tool table.
func New(cfg Config, deps Deps) (*Agent, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("agent: name is required")
	}
	if deps.Bus == nil || deps.Provider == nil || deps.Roles == nil {
		return nil, errors.New("agent: bus, provider and roles are required")
	}
	allowed, err := deps.Roles.ToolsFor(cfg.Role)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
	}
	cfg.applyDefaults()

	a := &Agent{
		cfg:        cfg,
		bus:        deps.Bus,
		provider:   deps.Provider,
		roles:      deps.Roles,
		journal:    deps.Journal,
		allowed:    allowed,
		gate:       NewGate(cfg.Cooldown),
		activity:   NewActivityLog(cfg.ActivityLimit),
		channel:    cfg.Channel,
		transcript: NewTranscript(cfg.MemoryWindow * 4),
		now:        time.Now,
	}
	a.tools = tools.NewToolset(tools.Deps{
		Seat:  a,
		Roles: deps.Roles,
		Bus:   deps.Bus,
		Store: deps.Store,
	})
	deps.Bus.Ensure(cfg.Channel)
	return a, nil
}

// --- tools.Seat ---

func (a *Agent) Name() string     { return a.cfg.Name }
func (a *Agent) Role() roles.Role { return a.cfg.Role }

func (a *Agent) Channel() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channel
}

// SwitchChannel moves the agent and positions its cursor at the new channel's tail.
func (a *Agent) SwitchChannel(channel string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	old := a.channel
	a.channel = channel
	a.cursor = a.bus.Tail(channel)
	log.Printf("[Agent %s] Switched #%s -> #%s", a.cfg.Name, old, channel)
	return old
}

// Say publishes content on channel if the gate allows it.
func (a *Agent) Say(channel, content string) bool {
	if !a.gate.Allow(content, a.now()) {
		return false
	}
	a.bus.Publish(channel, a.cfg.Name, content)
	return true
}

// RecordActivity appends to the activity log and the journal, if any.
func (a *Agent) RecordActivity(text string) {
	entry := ActivityEntry{Text: text, Channel: a.Channel(), At: a.now()}
	a.activity.Append(entry)
	if a.journal == nil {
		return
	}
	err := a.journal.RecordActivity(context.Background(), timeline.Activity{
		Agent: a.cfg.Name, Role: string(a.cfg.Role), Channel: entry.Channel, Text: text, CreatedAt: entry.At,
	})
	if err != nil {
		log.Printf("[Agent %s] journal activity failed: %v", a.cfg.Name, err)
	}
}

// --- lifecycle ---

// State returns the current lifecycle phase.
func (a *Agent) State() State { return State(a.state.Load()) }

func (a *Agent) setState(s State) { a.state.Store(int32(s)) }

// Activity returns a copy of the activity log.
func (a *Agent) Activity() []ActivityEntry { return a.activity.Entries() }

// Run starts the listen and decide loops and blocks until ctx is cancelled,
// Stop is called, or a fatal error occurs. Fatal errors wrap ErrFatal.
func (a *Agent) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancMu.Lock()
	a.cancel = cancel
	a.cancMu.Unlock()
	defer cancel()

	a.mu.Lock()
	a.cursor = a.bus.Tail(a.channel)
	channel := a.channel
	a.mu.Unlock()

	a.Say(channel, fmt.Sprintf("%s is online.", a.cfg.Name))
	log.Printf("[Agent %s] Started in #%s (role %s)", a.cfg.Name, channel, a.cfg.Role)
	a.setState(Running)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.listen(ctx)
	}()

	err := a.decideLoop(ctx)

	a.setState(Stopping)
	cancel()
	wg.Wait()
	a.setState(Stopped)
	log.Printf("[Agent %s] Shutting down", a.cfg.Name)
	return err
}

// Stop cancels both loops. Safe to call before Run or more than once.
func (a *Agent) Stop() {
	a.cancMu.Lock()
	cancel := a.cancel
	a.cancMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *Agent) listen(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll()
		}
	}
}

// poll reads the channel delta and appends foreign messages as user turns.
func (a *Agent) poll() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	msgs, next := a.bus.ReadNew(a.channel, a.cursor)
	a.cursor = next
	n := 0
	for _, m := range msgs {
		if m.Sender == a.cfg.Name {
			continue
		}
		a.transcript.AddUser(m.Sender, m.Content)
		n++
	}
	return n
}

func (a *Agent) decideLoop(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		delay := a.cfg.TurnDelay
		err := a.safeTurn(ctx)
		switch {
		case err == nil:
			failures = 0
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrFatal):
			log.Printf("[Agent %s] Fatal: %v", a.cfg.Name, err)
			a.goOffline()
			return err
		default:
			failures++
			log.Printf("[Agent %s] Turn failed (%d/%d): %v", a.cfg.Name, failures, a.cfg.MaxFailures, err)
			if failures >= a.cfg.MaxFailures {
				a.goOffline()
				return fmt.Errorf("%w: %d consecutive failures, last: %v", ErrFatal, failures, err)
			}
			delay = a.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (a *Agent) goOffline() {
	channel := a.Channel()
	a.bus.Publish(channel, a.cfg.Name, fmt.Sprintf("%s is going offline due to an error.", a.cfg.Name))
}

// safeTurn converts a panic inside a turn into a fatal error.
func (a *Agent) safeTurn(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrFatal, r)
		}
	}()
	return a.turn(ctx)
}

// turn runs one decide cycle: model call with the manifest, gated tool
// dispatch, a second model call without tools, then a gated publish.
func (a *Agent) turn(ctx context.Context) error {
	manifest := a.tools.Schemas(a.allowed)

	resp, err := a.provider.Chat(ctx, a.request(manifest))
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if resp == nil {
		return errors.New("llm: empty response")
	}

	a.mu.Lock()
	a.transcript.AddAssistant(resp.Text(), resp.ToolCalls)
	a.mu.Unlock()

	if resp.HasToolCalls() {
		// Every call gets a tool turn, even after a backend failure.
		var toolErr error
		for _, tc := range resp.ToolCalls {
			result, err := a.dispatch(ctx, tc)
			a.mu.Lock()
			a.transcript.AddToolResult(tc.ID, tc.Name, result)
			a.mu.Unlock()
			if err != nil && toolErr == nil {
				toolErr = fmt.Errorf("tool %s: %w", tc.Name, err)
			}
		}
		if toolErr != nil {
			return toolErr
		}
	}

	final, err := a.provider.Chat(ctx, a.request(nil))
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	reply := strings.TrimSpace(final.Text())
	if reply == "" {
		return nil
	}

	a.mu.Lock()
	channel := a.channel
	a.mu.Unlock()

	// A suppressed reply stays out of the transcript; the channel never saw it.
	if a.Say(channel, reply) {
		a.mu.Lock()
		a.transcript.AddAssistant(reply, nil)
		a.mu.Unlock()
	}
	return nil
}

// dispatch runs one tool call after the role check. Denied calls never reach
// an executor. A returned error is a backend failure; result is then the text
// recorded for the model.
func (a *Agent) dispatch(ctx context.Context, tc providers.ToolCallRequest) (string, error) {
	started := a.now()
	rec := timeline.ToolCall{
		CallID:    tc.ID,
		Agent:     a.cfg.Name,
		Role:      string(a.cfg.Role),
		Tool:      tc.Name,
		Arguments: argumentsJSON(tc),
		CreatedAt: started,
	}

	if !a.roles.Allowed(a.cfg.Role, tc.Name) {
		log.Printf("[Agent %s] Denied tool %s", a.cfg.Name, tc.Name)
		rec.Result = UnauthorizedResult
		a.journalCall(rec)
		return UnauthorizedResult, nil
	}

	rec.Allowed = true
	if tc.ArgumentsErr != nil {
		rec.Result = tools.ArgError(tc.Name, tc.ArgumentsErr)
		rec.ErrorText = tc.ArgumentsErr.Error()
		a.journalCall(rec)
		return rec.Result, nil
	}

	result, err := a.tools.Execute(ctx, tc.Name, tc.Arguments)
	rec.DurationMs = a.now().Sub(started).Milliseconds()
	if err != nil {
		result = fmt.Sprintf("Error: %s failed: %v", tc.Name, err)
		rec.ErrorText = err.Error()
	}
	result = utils.TruncateString(result, maxToolResult, "\n... (truncated)")
	rec.Result = result
	a.journalCall(rec)
	return result, err
}

func (a *Agent) journalCall(rec timeline.ToolCall) {
	if a.journal == nil {
		return
	}
	if err := a.journal.RecordToolCall(context.Background(), rec); err != nil {
		log.Printf("[Agent %s] journal tool call failed: %v", a.cfg.Name, err)
	}
}

func argumentsJSON(tc providers.ToolCallRequest) string {
	if tc.RawArguments != "" {
		return tc.RawArguments
	}
	data, err := json.Marshal(tc.Arguments)
	if err != nil || tc.Arguments == nil {
		return "{}"
	}
	return string(data)
}

// request snapshots the transcript under the lock and builds a model request.
func (a *Agent) request(manifest []map[string]any) providers.ChatRequest {
	a.mu.Lock()
	channel := a.channel
	window := a.transcript.Window(a.cfg.MemoryWindow)
	a.mu.Unlock()

	system := buildSystemPrompt(promptInput{
		Name:     a.cfg.Name,
		Role:     string(a.cfg.Role),
		Channel:  channel,
		Channels: a.bus.Channels(),
		Tools:    a.allowed,
		Persona:  a.cfg.Persona,
		Now:      a.now(),
	})

	msgs := make([]providers.Message, 0, len(window)+1)
	msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: system})
	msgs = append(msgs, window...)

	return providers.ChatRequest{
		Messages:    msgs,
		Tools:       manifest,
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}
}

// Info is a read-only snapshot for status surfaces.
type Info struct {
	Name          string     `json:"name"`
	Role          roles.Role `json:"role"`
	Channel       string     `json:"channel"`
	State         State      `json:"state"`
	Tools         []string   `json:"tools"`
	LastPublished string     `json:"last_published,omitempty"`
	LastAt        *time.Time `json:"last_published_at,omitempty"`
	Activity      int        `json:"activity_entries"`
	Transcript    int        `json:"transcript_turns"`
}

// Info returns a snapshot of the agent.
func (a *Agent) Info() Info {
	a.mu.Lock()
	channel := a.channel
	turns := a.transcript.Len()
	a.mu.Unlock()

	info := Info{
		Name:       a.cfg.Name,
		Role:       a.cfg.Role,
		Channel:    channel,
		State:      a.State(),
		Tools:      append([]string(nil), a.allowed...),
		Activity:   a.activity.Len(),
		Transcript: turns,
	}
	if content, at, ok := a.gate.Last(); ok {
		info.LastPublished = content
		info.LastAt = &at
	}
	return info
}
