package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/officebot/internal/agent"
	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/providers"
	"github.com/dayuer/officebot/internal/roles"
)

// mockProvider satisfies providers.LLMProvider for testing.
type mockProvider struct {
	mu    sync.Mutex
	fail  map[string]bool // system prompt substring -> fail
	calls int
}

func (m *mockProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for marker := range m.fail {
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, marker) {
			return nil, errors.New("model unavailable")
		}
	}
	content := ""
	return &providers.LLMResponse{Content: &content, FinishReason: "stop"}, nil
}

func (m *mockProvider) DefaultModel() string { return "mock" }

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "agents.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSpecs(), f.Agents)
	assert.Equal(t, []string{"HR", "Management", "General", "Tech"}, f.Channels())

	reg, err := f.Registry()
	require.NoError(t, err)
	assert.True(t, reg.Allowed(roles.HR, roles.AddEmployee))
}

func TestLoad_File(t *testing.T) {
	yaml := `agents:
  - name: Recruiter
    role: HR
    channel: "#HR"
    persona: "Warm and precise."
    temperature: 0.2
  - name: Helper
    role: General
roles:
  General: [list_employees, send_message]
`
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Agents, 2)
	assert.Equal(t, "HR", f.Agents[0].Channel)
	assert.Equal(t, "Warm and precise.", f.Agents[0].Persona)
	assert.Equal(t, 0.2, f.Agents[0].Temperature)
	assert.Equal(t, "General", f.Agents[1].Channel, "channel defaults to General")

	reg, err := f.Registry()
	require.NoError(t, err)
	tools, err := reg.ToolsFor(roles.General)
	require.NoError(t, err)
	assert.Equal(t, []string{roles.ListEmployees, roles.SendMessage}, tools)
	assert.True(t, reg.Allowed(roles.Management, roles.BroadcastMessage), "rows not overridden stay built-in")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "agents: [\n"},
		{"missing name", "agents:\n  - role: HR\n"},
		{"missing role", "agents:\n  - name: A\n"},
		{"duplicate", "agents:\n  - {name: A, role: HR}\n  - {name: A, role: General}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRegistry_UnknownToolInOverride(t *testing.T) {
	f, err := Parse([]byte("roles:\n  HR: [fire_everyone]\n"))
	require.NoError(t, err)
	_, err = f.Registry()
	assert.ErrorIs(t, err, roles.ErrUnknownTool)
}

func TestRegistry_UnknownAgentRole(t *testing.T) {
	f, err := Parse([]byte("agents:\n  - {name: Bean, role: Finance}\n"))
	require.NoError(t, err)
	_, err = f.Registry()
	assert.ErrorIs(t, err, roles.ErrUnknownRole)
}

func TestNew_BuildsLineup(t *testing.T) {
	b := bus.NewChannelBus()
	r, err := New(DefaultSpecs(), agent.Config{Model: "base-model"}, agent.Deps{
		Bus: b, Provider: &mockProvider{}, Roles: roles.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []string{"HR_Agent", "Manager_Agent", "Operations_Agent1", "Operations_Agent2"}, r.Names())
	assert.Nil(t, r.Get("nobody"))

	infos := r.Infos()
	require.Len(t, infos, 4)
	assert.Equal(t, "Tech", infos[3].Channel)
	assert.Equal(t, roles.General, infos[3].Role)
	assert.Equal(t, []string{"HR", "Management", "General", "Tech"}, b.Channels())
}

func TestNew_Rejects(t *testing.T) {
	deps := agent.Deps{Bus: bus.NewChannelBus(), Provider: &mockProvider{}, Roles: roles.Default()}

	_, err := New([]AgentSpec{{Name: "A", Role: "Finance"}}, agent.Config{}, deps)
	assert.ErrorIs(t, err, roles.ErrUnknownRole)

	_, err = New([]AgentSpec{{Name: "A", Role: roles.HR}, {Name: "A", Role: roles.HR}}, agent.Config{}, deps)
	assert.Error(t, err)
}

func TestSpecConfig_Overrides(t *testing.T) {
	base := agent.Config{Model: "base", Temperature: 0.7, MaxTokens: 512, Cooldown: time.Second}
	cfg := specConfig(AgentSpec{Name: "A", Role: roles.HR, Channel: "HR", Model: "special", MaxTokens: 64}, base)
	assert.Equal(t, "special", cfg.Model)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 64, cfg.MaxTokens)
	assert.Equal(t, time.Second, cfg.Cooldown)
}

func TestRun_OneFailingAgentDoesNotStopOthers(t *testing.T) {
	b := bus.NewChannelBus()
	provider := &mockProvider{fail: map[string]bool{"# Broken": true}}
	specs := []AgentSpec{
		{Name: "Broken", Role: roles.General, Channel: "General"},
		{Name: "Healthy", Role: roles.General, Channel: "Tech"},
	}
	r, err := New(specs, agent.Config{
		PollInterval: 5 * time.Millisecond, TurnDelay: 5 * time.Millisecond,
		ErrorBackoff: time.Millisecond, MaxFailures: 2,
	}, agent.Deps{Bus: b, Provider: provider, Roles: roles.Default()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.Get("Broken").State() == agent.Stopped }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return r.Get("Healthy").State() == agent.Running }, time.Second, 5*time.Millisecond)

	cancel()
	err = <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrFatal)
	assert.Contains(t, err.Error(), "Broken")
	assert.Equal(t, agent.Stopped, r.Get("Healthy").State())
}
