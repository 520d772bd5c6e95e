package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/officebot/internal/employees"
	"github.com/dayuer/officebot/internal/roles"
)

func TestAddEmployee_ThenDuplicate(t *testing.T) {
	f := newFixture(t, roles.HR)
	args := map[string]any{"name": "Alice", "department": "HR", "position": "Recruiter"}

	out := f.exec(t, roles.AddEmployee, args)
	assert.Equal(t, "Successfully added employee Alice to HR as Recruiter.", out)
	assert.Equal(t, []string{"Added employee Alice to HR as Recruiter"}, f.seat.activity)

	out = f.exec(t, roles.AddEmployee, args)
	assert.True(t, len(out) > 6 && out[:6] == "Error:", out)
	assert.Contains(t, out, "Alice")

	doc, err := f.store.List(context.Background(), "HR")
	require.NoError(t, err)
	assert.Len(t, doc["HR"], 1)
}

func TestAddEmployee_MissingFields(t *testing.T) {
	f := newFixture(t, roles.HR)
	out := f.exec(t, roles.AddEmployee, map[string]any{"name": "Alice"})
	assert.Contains(t, out, "Error: all fields (name, department, position) are required")
}

func TestAddEmployee_UnknownDepartment(t *testing.T) {
	f := newFixture(t, roles.HR)
	out := f.exec(t, roles.AddEmployee, map[string]any{"name": "A", "department": "Finance", "position": "x"})
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "Finance")
}

func TestUpdateAndRemoveEmployee(t *testing.T) {
	f := newFixture(t, roles.HR)
	f.exec(t, roles.AddEmployee, map[string]any{"name": "Alice", "department": "HR", "position": "Recruiter"})

	out := f.exec(t, roles.UpdateEmployee, map[string]any{"name": "Alice", "department": "HR", "new_position": "Lead"})
	assert.Equal(t, "Successfully updated employee Alice.", out)

	out = f.exec(t, roles.UpdateEmployee, map[string]any{"name": "Nobody", "department": "HR"})
	assert.Contains(t, out, "Error:")

	out = f.exec(t, roles.RemoveEmployee, map[string]any{"name": "Alice", "department": "HR"})
	assert.Equal(t, "Successfully removed employee Alice from HR.", out)

	out = f.exec(t, roles.RemoveEmployee, map[string]any{"name": "Alice", "department": "HR"})
	assert.Contains(t, out, "Error:")
	assert.Len(t, f.seat.activity, 3)
}

func TestListEmployees(t *testing.T) {
	f := newFixture(t, roles.HR)
	f.exec(t, roles.AddEmployee, map[string]any{"name": "Alice", "department": "HR", "position": "Recruiter"})

	var all map[string][]employees.Employee
	require.NoError(t, json.Unmarshal([]byte(f.exec(t, roles.ListEmployees, nil)), &all))
	assert.Len(t, all, 4)
	assert.Len(t, all["HR"], 1)

	var one map[string][]employees.Employee
	require.NoError(t, json.Unmarshal([]byte(f.exec(t, roles.ListEmployees, map[string]any{"department": "Tech"})), &one))
	assert.Equal(t, map[string][]employees.Employee{"Tech": {}}, one)
}

func TestDepartmentStats(t *testing.T) {
	hr := newFixture(t, roles.HR)
	hr.exec(t, roles.AddEmployee, map[string]any{"name": "A", "department": "Tech", "position": "Engineer"})
	hr.exec(t, roles.AddEmployee, map[string]any{"name": "B", "department": "Tech", "position": "Engineer"})

	mgmt := NewToolset(Deps{
		Seat:  newFakeSeat("Manager_Agent", roles.Management, "Management", hr.bus),
		Roles: roles.Default(),
		Bus:   hr.bus,
		Store: hr.store,
	})
	out, err := mgmt.Execute(context.Background(), roles.ViewDepartmentStats, map[string]any{"department": "Tech"})
	require.NoError(t, err)

	var stats map[string]employees.DepartmentStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats["Tech"].TotalEmployees)
	assert.Equal(t, 2, stats["Tech"].Positions["Engineer"])

	denied := hr.exec(t, roles.ViewDepartmentStats, nil)
	assert.Contains(t, denied, "Access Denied")
}

func TestGenerateReport(t *testing.T) {
	f := newFixture(t, roles.HR)
	f.exec(t, roles.AddEmployee, map[string]any{"name": "A", "department": "Tech", "position": "Engineer"})
	out := f.exec(t, roles.GenerateReport, map[string]any{"department": "Tech"})
	assert.Contains(t, out, "Tech: 1 employee(s)")

	out = f.exec(t, roles.GenerateReport, map[string]any{"department": "Finance"})
	assert.Contains(t, out, "Error:")
}

type brokenStore struct{ EmployeeStore }

func (brokenStore) Add(context.Context, string, string, string) (employees.Employee, error) {
	return employees.Employee{}, errors.New("disk full")
}

func TestAddEmployee_BackendErrorIsReturned(t *testing.T) {
	f := newFixture(t, roles.HR)
	tool := &AddEmployeeTool{Access: Access{Seat: f.seat, Roles: roles.Default()}, Store: brokenStore{}}
	out, err := tool.Execute(context.Background(), map[string]any{"name": "A", "department": "HR", "position": "x"})
	assert.Error(t, err)
	assert.Empty(t, out)
	assert.Empty(t, f.seat.activity)
}
