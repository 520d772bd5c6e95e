package roster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dayuer/officebot/internal/agent"
)

// Roster owns the agents built from a lineup.
type Roster struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string
}

// New builds one agent per spec. base carries the loop settings shared by
// every agent; per-spec fields override identity, persona and model knobs.
func New(specs []AgentSpec, base agent.Config, deps agent.Deps) (*Roster, error) {
	r := &Roster{agents: make(map[string]*agent.Agent, len(specs))}
	for _, spec := range specs {
		if _, dup := r.agents[spec.Name]; dup {
			return nil, fmt.Errorf("agent %s: duplicate name", spec.Name)
		}
		a, err := agent.New(specConfig(spec, base), deps)
		if err != nil {
			return nil, err
		}
		r.agents[spec.Name] = a
		r.order = append(r.order, spec.Name)
		log.Printf("[Roster] Registered agent: %s (role=%s, channel=#%s)", spec.Name, spec.Role, spec.Channel)
	}
	return r, nil
}

func specConfig(spec AgentSpec, base agent.Config) agent.Config {
	cfg := base
	cfg.Name = spec.Name
	cfg.Role = spec.Role
	cfg.Channel = spec.Channel
	cfg.Persona = spec.Persona
	if spec.Model != "" {
		cfg.Model = spec.Model
	}
	if spec.Temperature != 0 {
		cfg.Temperature = spec.Temperature
	}
	if spec.MaxTokens != 0 {
		cfg.MaxTokens = spec.MaxTokens
	}
	return cfg
}

// Get returns the agent with the given name, or nil if not found.
func (r *Roster) Get(name string) *agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[name]
}

// Names returns agent names in lineup order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of agents.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Infos returns a snapshot of every agent, in lineup order.
func (r *Roster) Infos() []agent.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name].Info())
	}
	return out
}

// Run starts every agent and blocks until all of them have stopped. One
// agent going offline does not stop the others. The returned error joins
// the fatal errors of the agents that went offline.
func (r *Roster) Run(ctx context.Context) error {
	r.mu.RLock()
	agents := make([]*agent.Agent, 0, len(r.order))
	for _, name := range r.order {
		agents = append(agents, r.agents[name])
	}
	r.mu.RUnlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, a := range agents {
		wg.Add(1)
		go func(a *agent.Agent) {
			defer wg.Done()
			if err := a.Run(ctx); err != nil {
				log.Printf("[Roster] Agent %s stopped: %v", a.Name(), err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Stop asks every agent to stop.
func (r *Roster) Stop() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		r.agents[name].Stop()
	}
}
