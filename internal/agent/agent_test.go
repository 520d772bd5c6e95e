package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/employees"
	"github.com/dayuer/officebot/internal/providers"
	"github.com/dayuer/officebot/internal/roles"
	"github.com/dayuer/officebot/internal/timeline"
)

// mockProvider replays scripted responses and records every request.
type mockProvider struct {
	mu        sync.Mutex
	responses []*providers.LLMResponse
	errs      []error
	requests  []providers.ChatRequest
	panicMsg  string
}

func (m *mockProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(m.responses) == 0 {
		return &providers.LLMResponse{Content: strP(""), FinishReason: "stop"}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *mockProvider) DefaultModel() string { return "mock-model" }

func (m *mockProvider) Requests() []providers.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.ChatRequest(nil), m.requests...)
}

func strP(s string) *string { return &s }

func text(s string) *providers.LLMResponse {
	return &providers.LLMResponse{Content: strP(s), FinishReason: "stop"}
}

func toolCall(id, name string, args map[string]any) *providers.LLMResponse {
	return &providers.LLMResponse{
		Content:      strP(""),
		FinishReason: "tool_calls",
		ToolCalls:    []providers.ToolCallRequest{{ID: id, Name: name, Arguments: args}},
	}
}

// memJournal collects journal writes.
type memJournal struct {
	mu         sync.Mutex
	activities []timeline.Activity
	calls      []timeline.ToolCall
}

func (j *memJournal) RecordActivity(_ context.Context, a timeline.Activity) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.activities = append(j.activities, a)
	return nil
}

func (j *memJournal) RecordToolCall(_ context.Context, c timeline.ToolCall) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, c)
	return nil
}

type harness struct {
	bus      *bus.ChannelBus
	store    *employees.Store
	provider *mockProvider
	journal  *memJournal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		bus:      bus.NewChannelBus("General", "HR", "Management", "Tech"),
		store:    employees.NewStore(employees.NewFileBackend(filepath.Join(t.TempDir(), "employees.json"))),
		provider: &mockProvider{},
		journal:  &memJournal{},
	}
}

func (h *harness) agent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	a, err := New(cfg, Deps{
		Bus:      h.bus,
		Provider: h.provider,
		Roles:    roles.Default(),
		Store:    h.store,
		Journal:  h.journal,
	})
	require.NoError(t, err)
	return a
}

func contents(msgs []bus.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestNew_RejectsUnknownRole(t *testing.T) {
	h := newHarness(t)
	_, err := New(Config{Name: "X", Role: "Finance"}, Deps{Bus: h.bus, Provider: h.provider, Roles: roles.Default()})
	assert.ErrorIs(t, err, roles.ErrUnknownRole)
}

func TestNew_RequiresName(t *testing.T) {
	h := newHarness(t)
	_, err := New(Config{Role: roles.HR}, Deps{Bus: h.bus, Provider: h.provider, Roles: roles.Default()})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "A", Role: roles.General, Channel: "Lobby", Cooldown: 3 * time.Second})
	assert.Equal(t, 3*time.Second, a.cfg.TurnDelay)
	assert.Equal(t, 5*time.Second, a.cfg.ErrorBackoff)
	assert.Equal(t, 5, a.cfg.MaxFailures)
	assert.True(t, h.bus.Exists("Lobby"))
	assert.Equal(t, Starting, a.State())
}

func TestPoll_SkipsOwnMessagesAndAdvances(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "HR_Agent", Role: roles.HR, Channel: "HR"})

	h.bus.Publish("HR", "@operator", "hello")
	h.bus.Publish("HR", "HR_Agent", "my own words")
	h.bus.Publish("HR", "Manager_Agent", "hi HR")

	assert.Equal(t, 2, a.poll())
	assert.Equal(t, 0, a.poll(), "nothing is replayed")

	window := a.transcript.Window(0)
	require.Len(t, window, 2)
	assert.Equal(t, "@operator: hello", window[0].Content)
	assert.Equal(t, "Manager_Agent: hi HR", window[1].Content)
}

func TestSwitchChannel_CursorStartsAtTail(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "Ops", Role: roles.General})
	h.bus.Publish("Tech", "x", "old news")

	assert.Equal(t, "General", a.SwitchChannel("Tech"))
	h.bus.Publish("Tech", "x", "fresh")
	a.poll()

	window := a.transcript.Window(0)
	require.Len(t, window, 1)
	assert.Equal(t, "x: fresh", window[0].Content)
}

// HR agent adds Alice, then a duplicate add returns an error turn and the
// store is unchanged.
func TestTurn_HRAddThenDuplicate(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "HR_Agent", Role: roles.HR, Channel: "HR", Cooldown: time.Hour})
	ctx := context.Background()

	h.provider.responses = []*providers.LLMResponse{
		toolCall("c1", roles.AddEmployee, map[string]any{"name": "Alice", "department": "HR", "position": "Recruiter"}),
		text("Welcome Alice!"),
		toolCall("c2", roles.AddEmployee, map[string]any{"name": "Alice", "department": "HR", "position": "Manager"}),
		text("Alice is already here."),
	}
	require.NoError(t, a.turn(ctx))
	require.NoError(t, a.turn(ctx))

	doc, err := h.store.List(ctx, "HR")
	require.NoError(t, err)
	require.Len(t, doc["HR"], 1)
	assert.Equal(t, "Recruiter", doc["HR"][0].Position)

	var toolTurns []string
	for _, m := range a.transcript.Window(0) {
		if m.Role == providers.RoleTool {
			toolTurns = append(toolTurns, m.Content)
		}
	}
	require.Len(t, toolTurns, 2)
	assert.Contains(t, toolTurns[0], "Successfully added employee Alice")
	assert.True(t, strings.HasPrefix(toolTurns[1], "Error:"), toolTurns[1])

	// Second reply is inside the cooldown, so only the first reached the channel.
	assert.Equal(t, []string{"Welcome Alice!"}, contents(h.bus.Messages("HR")))
	assert.Len(t, a.Activity(), 1)
	require.Len(t, h.journal.activities, 1)
	assert.Equal(t, "HR_Agent", h.journal.activities[0].Agent)
}

// A General agent asking for add_employee gets the denial turn and nothing is invoked.
func TestTurn_GeneralDeniedAdd(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "Operations_Agent1", Role: roles.General})
	ctx := context.Background()

	h.provider.responses = []*providers.LLMResponse{
		toolCall("c1", roles.AddEmployee, map[string]any{"name": "Bob", "department": "Tech", "position": "Engineer"}),
		text("I can't do that."),
	}
	require.NoError(t, a.turn(ctx))

	doc, err := h.store.List(ctx, "Tech")
	require.NoError(t, err)
	assert.Empty(t, doc["Tech"])

	window := a.transcript.Window(0)
	var tool providers.Message
	for _, m := range window {
		if m.Role == providers.RoleTool {
			tool = m
		}
	}
	assert.Equal(t, UnauthorizedResult, tool.Content)
	assert.Equal(t, "c1", tool.ToolCallID)

	require.Len(t, h.journal.calls, 1)
	assert.False(t, h.journal.calls[0].Allowed)
	assert.Equal(t, roles.AddEmployee, h.journal.calls[0].Tool)
	assert.Empty(t, a.Activity())
}

// Two consecutive "hi" replies within the cooldown publish once.
func TestTurn_DuplicateWithinCooldown(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "Operations_Agent2", Role: roles.General, Channel: "Tech", Cooldown: time.Hour})
	ctx := context.Background()

	h.provider.responses = []*providers.LLMResponse{text(""), text("hi"), text(""), text("hi")}
	require.NoError(t, a.turn(ctx))
	require.NoError(t, a.turn(ctx))

	assert.Equal(t, []string{"hi"}, contents(h.bus.Messages("Tech")))
}

// failingBackend refuses every load and save.
type failingBackend struct{ err error }

func (b failingBackend) Load(context.Context) (employees.Document, error) { return nil, b.err }
func (b failingBackend) Save(context.Context, employees.Document) error { return b.err }

// A store failure on the first of two tool calls still answers both, so the
// next request is well formed and the failure stays transient.
func TestTurn_BackendFailureAnswersEveryToolCall(t *testing.T) {
	h := newHarness(t)
	h.store = employees.NewStore(failingBackend{err: errors.New("disk gone")})
	a := h.agent(t, Config{Name: "HR_Agent", Role: roles.HR, Channel: "HR"})
	ctx := context.Background()

	h.provider.responses = []*providers.LLMResponse{
		{
			Content:      strP(""),
			FinishReason: "tool_calls",
			ToolCalls: []providers.ToolCallRequest{
				{ID: "c1", Name: roles.ListEmployees, Arguments: map[string]any{}},
				{ID: "c2", Name: roles.LogActivity, Arguments: map[string]any{"text": "checked the roster"}},
			},
		},
		text("Store is back."),
	}

	err := a.turn(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Contains(t, contents(h.bus.Messages("HR")), "[activity] checked the roster")

	require.NoError(t, a.turn(ctx))
	reqs := h.provider.Requests()
	require.Len(t, reqs, 3, "the failed turn skips its reply call")

	answered := map[string]string{}
	var asked []string
	for _, m := range reqs[1].Messages {
		for _, tc := range m.ToolCalls {
			asked = append(asked, tc.ID)
		}
		if m.Role == providers.RoleTool {
			answered[m.ToolCallID] = m.Content
		}
	}
	assert.Equal(t, []string{"c1", "c2"}, asked)
	for _, id := range asked {
		assert.Contains(t, answered, id)
	}
	assert.True(t, strings.HasPrefix(answered["c1"], "Error: list_employees failed"), answered["c1"])
	require.Len(t, h.journal.calls, 2)
	assert.Equal(t, "disk gone", h.journal.calls[0].ErrorText)
}

func TestTurn_MalformedArgumentsReported(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "HR_Agent", Role: roles.HR, Channel: "HR"})
	ctx := context.Background()

	h.provider.responses = []*providers.LLMResponse{
		{
			Content:      strP(""),
			FinishReason: "tool_calls",
			ToolCalls: []providers.ToolCallRequest{{
				ID:           "c1",
				Name:         roles.AddEmployee,
				RawArguments: `{"name": "Alice",`,
				ArgumentsErr: errors.New("unexpected end of JSON input"),
			}},
		},
		text("Let me retry."),
	}
	require.NoError(t, a.turn(ctx))

	var tool providers.Message
	for _, m := range a.transcript.Window(0) {
		if m.Role == providers.RoleTool {
			tool = m
		}
	}
	assert.Equal(t, "Error: invalid arguments for add_employee: unexpected end of JSON input", tool.Content)

	doc, err := h.store.List(ctx, "HR")
	require.NoError(t, err)
	assert.Empty(t, doc["HR"])
	require.Len(t, h.journal.calls, 1)
	assert.True(t, h.journal.calls[0].Allowed)
	assert.Equal(t, `{"name": "Alice",`, h.journal.calls[0].Arguments)
}

func TestTurn_SuppressedReplyStaysOutOfTranscript(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "Operations_Agent2", Role: roles.General, Channel: "Tech", Cooldown: time.Hour})
	ctx := context.Background()

	h.provider.responses = []*providers.LLMResponse{text(""), text("hi"), text(""), text("hello again")}
	require.NoError(t, a.turn(ctx))
	require.NoError(t, a.turn(ctx))

	var replies []string
	for _, m := range a.transcript.Window(0) {
		if m.Role == providers.RoleAssistant && m.Content != "" {
			replies = append(replies, m.Content)
		}
	}
	assert.Equal(t, []string{"hi"}, replies)
	assert.Equal(t, []string{"hi"}, contents(h.bus.Messages("Tech")))
}

func TestTurn_ManifestOnlyOnFirstCall(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "Manager_Agent", Role: roles.Management, Channel: "Management"})
	h.provider.responses = []*providers.LLMResponse{text("thinking"), text("Morning all")}

	require.NoError(t, a.turn(context.Background()))
	reqs := h.provider.Requests()
	require.Len(t, reqs, 2)

	require.Len(t, reqs[0].Tools, 5)
	for i, name := range []string{roles.ListEmployees, roles.GenerateReport, roles.LogActivity, roles.BroadcastMessage, roles.ViewDepartmentStats} {
		assert.Equal(t, name, reqs[0].Tools[i]["function"].(map[string]any)["name"])
	}
	assert.Empty(t, reqs[1].Tools)
	assert.Equal(t, providers.RoleSystem, reqs[0].Messages[0].Role)
	assert.Contains(t, reqs[0].Messages[0].Content, "Manager_Agent")

	// The second call sees the first reply.
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, providers.RoleAssistant, last.Role)
	assert.Equal(t, "thinking", last.Content)
	assert.Equal(t, []string{"Morning all"}, contents(h.bus.Messages("Management")))
}

func TestTurn_LLMErrorIsTransient(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "A", Role: roles.General})
	h.provider.errs = []error{errors.New("connection refused")}

	err := a.turn(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFatal)
	assert.Zero(t, h.bus.Len("General"))
}

func TestRun_AnnouncesAndStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{
		Name: "Ops", Role: roles.General,
		PollInterval: 5 * time.Millisecond, TurnDelay: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.State() == Running }, time.Second, 5*time.Millisecond)
	h.bus.Publish("General", "@operator", "status?")
	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, m := range a.transcript.Window(0) {
			if m.Content == "@operator: status?" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, Stopped, a.State())
	assert.Equal(t, "Ops is online.", h.bus.Messages("General")[0].Content)
	assert.ErrorIs(t, a.Run(context.Background()), ErrAlreadyStarted)
}

func TestRun_StopMethod(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "Ops", Role: roles.General, PollInterval: 5 * time.Millisecond, TurnDelay: 5 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	require.Eventually(t, func() bool { return a.State() == Running }, time.Second, 5*time.Millisecond)

	a.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRun_RepeatedFailuresGoOffline(t *testing.T) {
	h := newHarness(t)
	h.provider.errs = []error{errors.New("e1"), errors.New("e2"), errors.New("e3")}
	a := h.agent(t, Config{
		Name: "Ops", Role: roles.General,
		PollInterval: 5 * time.Millisecond, ErrorBackoff: time.Millisecond, MaxFailures: 3,
	})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, Stopped, a.State())
	assert.Equal(t, []string{"Ops is online.", "Ops is going offline due to an error."}, contents(h.bus.Messages("General")))
}

func TestRun_PanicIsFatal(t *testing.T) {
	h := newHarness(t)
	h.provider.panicMsg = "boom"
	a := h.agent(t, Config{Name: "Ops", Role: roles.General, PollInterval: 5 * time.Millisecond})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Contains(t, err.Error(), "boom")
	msgs := h.bus.Messages("General")
	assert.Equal(t, "Ops is going offline due to an error.", msgs[len(msgs)-1].Content)
}

func TestRun_FailureCounterResetsOnSuccess(t *testing.T) {
	h := newHarness(t)
	// fail, fail, succeed (2 calls), fail, fail: never three in a row.
	h.provider.errs = []error{errors.New("e1"), errors.New("e2"), nil, nil, errors.New("e3"), errors.New("e4")}
	a := h.agent(t, Config{
		Name: "Ops", Role: roles.General,
		PollInterval: 5 * time.Millisecond, ErrorBackoff: time.Millisecond, TurnDelay: time.Millisecond, MaxFailures: 3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.provider.Requests()) >= 8 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestInfo(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, Config{Name: "HR_Agent", Role: roles.HR, Channel: "HR"})
	assert.True(t, a.Say("HR", "hello"))

	info := a.Info()
	assert.Equal(t, "HR_Agent", info.Name)
	assert.Equal(t, "HR", info.Channel)
	assert.Equal(t, Starting, info.State)
	assert.Equal(t, "hello", info.LastPublished)
	assert.Len(t, info.Tools, 6)
}
