// Package roles holds the static role → tool capability table.
package roles

import (
	"errors"
	"fmt"
	"sort"
)

// Role names a capability set. It is fixed for an agent's lifetime.
type Role string

const (
	HR         Role = "HR"
	Management Role = "Management"
	General    Role = "General"
)

// Tool identifiers understood by the executor table.
const (
	ListEmployees       = "list_employees"
	AddEmployee         = "add_employee"
	UpdateEmployee      = "update_employee"
	RemoveEmployee      = "remove_employee"
	GenerateReport      = "generate_report"
	ViewDepartmentStats = "view_department_stats"
	LogActivity         = "log_activity"
	BroadcastMessage    = "broadcast_message"
	ChangeChannel       = "change_channel"
	ViewChannelHistory  = "view_channel_history"
	SendMessage         = "send_message"
)

// KnownTools lists every tool identifier an override may reference.
var KnownTools = []string{
	ListEmployees, AddEmployee, UpdateEmployee, RemoveEmployee, GenerateReport,
	ViewDepartmentStats, LogActivity, BroadcastMessage, ChangeChannel,
	ViewChannelHistory, SendMessage,
}

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrUnknownTool = errors.New("unknown tool")
)

// DefaultTable is the built-in capability table.
func DefaultTable() map[Role][]string {
	return map[Role][]string{
		HR:         {ListEmployees, AddEmployee, RemoveEmployee, GenerateReport, LogActivity, UpdateEmployee},
		Management: {ListEmployees, GenerateReport, LogActivity, BroadcastMessage, ViewDepartmentStats},
		General:    {ListEmployees, LogActivity, SendMessage, ChangeChannel, ViewChannelHistory},
	}
}

// Registry answers "may role R use tool T". It is immutable after construction
// and safe for concurrent use without locking.
type Registry struct {
	tools map[Role][]string
	index map[Role]map[string]bool
}

// NewRegistry builds a registry from a role → tool table.
// Every tool identifier must be one of KnownTools.
func NewRegistry(table map[Role][]string) (*Registry, error) {
	known := make(map[string]bool, len(KnownTools))
	for _, name := range KnownTools {
		known[name] = true
	}

	r := &Registry{
		tools: make(map[Role][]string, len(table)),
		index: make(map[Role]map[string]bool, len(table)),
	}
	for role, names := range table {
		if role == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrUnknownRole)
		}
		set := make(map[string]bool, len(names))
		ordered := make([]string, 0, len(names))
		for _, name := range names {
			if !known[name] {
				return nil, fmt.Errorf("role %s: %w %q", role, ErrUnknownTool, name)
			}
			if set[name] {
				continue
			}
			set[name] = true
			ordered = append(ordered, name)
		}
		r.tools[role] = ordered
		r.index[role] = set
	}
	return r, nil
}

// Default returns the registry for the built-in table.
func Default() *Registry {
	r, err := NewRegistry(DefaultTable())
	if err != nil {
		panic(err)
	}
	return r
}

// Allowed reports whether role may invoke tool.
func (r *Registry) Allowed(role Role, tool string) bool {
	return r.index[role][tool]
}

// ToolsFor returns the ordered tool list for role.
func (r *Registry) ToolsFor(role Role) ([]string, error) {
	names, ok := r.tools[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

// Validate returns ErrUnknownRole if role has no entry.
func (r *Registry) Validate(role Role) error {
	if _, ok := r.tools[role]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return nil
}

// Roles returns all configured roles, sorted.
func (r *Registry) Roles() []Role {
	out := make([]Role, 0, len(r.tools))
	for role := range r.tools {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
