// Package roster loads the agent lineup from agents.yaml and runs it.
//
// Each agent has a fixed identity, an immutable role and a starting channel.
// An optional roles section replaces individual rows of the built-in
// role/tool table.
package roster

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dayuer/officebot/internal/roles"
	"github.com/dayuer/officebot/internal/utils"
)

// AgentSpec defines a single agent (from agents.yaml).
type AgentSpec struct {
	Name        string     `yaml:"name" json:"name"`
	Role        roles.Role `yaml:"role" json:"role"`
	Channel     string     `yaml:"channel" json:"channel"`
	Persona     string     `yaml:"persona,omitempty" json:"persona,omitempty"`
	Model       string     `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature float64    `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int        `yaml:"max_tokens,omitempty" json:"maxTokens,omitempty"`
}

// File is the top-level structure of agents.yaml.
type File struct {
	Agents []AgentSpec         `yaml:"agents"`
	Roles  map[string][]string `yaml:"roles,omitempty"`
}

// DefaultSpecs is the built-in company lineup.
func DefaultSpecs() []AgentSpec {
	return []AgentSpec{
		{Name: "HR_Agent", Role: roles.HR, Channel: "HR"},
		{Name: "Manager_Agent", Role: roles.Management, Channel: "Management"},
		{Name: "Operations_Agent1", Role: roles.General, Channel: "General"},
		{Name: "Operations_Agent2", Role: roles.General, Channel: "Tech"},
	}
}

// Load reads and parses an agents.yaml file. A missing file yields the
// built-in lineup; a file without agents keeps the built-in lineup but
// still applies its roles section.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Agents: DefaultSpecs()}, nil
		}
		return nil, fmt.Errorf("read agents.yaml: %w", err)
	}
	return Parse(data)
}

// Parse decodes agents.yaml content and validates it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents.yaml: %w", err)
	}
	if len(f.Agents) == 0 {
		f.Agents = DefaultSpecs()
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) normalize() error {
	seen := make(map[string]bool, len(f.Agents))
	var errs []error
	for i := range f.Agents {
		s := &f.Agents[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Channel = utils.NormalizeChannel(s.Channel)
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("agent #%d: name is required", i+1))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("agent %s: duplicate name", s.Name))
		case s.Role == "":
			errs = append(errs, fmt.Errorf("agent %s: role is required", s.Name))
		}
		seen[s.Name] = true
		if s.Channel == "" {
			s.Channel = "General"
		}
	}
	return errors.Join(errs...)
}

// Registry builds the role table: built-in rows, replaced by any rows in the
// roles section. Unknown tools in an override are a load error, as are agents
// whose role is not in the final table.
func (f *File) Registry() (*roles.Registry, error) {
	table := roles.DefaultTable()
	for role, tools := range f.Roles {
		table[roles.Role(role)] = tools
	}
	reg, err := roles.NewRegistry(table)
	if err != nil {
		return nil, fmt.Errorf("agents.yaml roles: %w", err)
	}
	for _, s := range f.Agents {
		if err := reg.Validate(s.Role); err != nil {
			return nil, fmt.Errorf("agent %s: %w", s.Name, err)
		}
	}
	return reg, nil
}

// Channels returns every starting channel, in lineup order, without repeats.
func (f *File) Channels() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range f.Agents {
		if !seen[s.Channel] {
			seen[s.Channel] = true
			out = append(out, s.Channel)
		}
	}
	return out
}
