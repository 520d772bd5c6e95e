package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dayuer/officebot/internal/employees"
	"github.com/dayuer/officebot/internal/roles"
)

// EmployeeStore is the subset of employees.Store the tools use.
type EmployeeStore interface {
	List(ctx context.Context, department string) (employees.Document, error)
	Add(ctx context.Context, name, department, position string) (employees.Employee, error)
	Update(ctx context.Context, name, department, newPosition string) (employees.Employee, error)
	Remove(ctx context.Context, name, department string) (employees.Employee, error)
	Stats(ctx context.Context, department string) (map[string]employees.DepartmentStats, error)
	Report(ctx context.Context, department string) (string, error)
}

// storeResult turns a store error into either an "Error: ..." string
// (validation) or a returned error (backend failure).
func storeResult(err error) (string, error) {
	if employees.IsValidation(err) {
		return "Error: " + err.Error(), nil
	}
	return "", err
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

// ListEmployeesTool lists employees, optionally filtered by department.
type ListEmployeesTool struct {
	Access
	Store EmployeeStore
}

func (t *ListEmployeesTool) Name() string { return roles.ListEmployees }
func (t *ListEmployeesTool) Description() string {
	return "List employees grouped by department. Pass a department to list only that one."
}
func (t *ListEmployeesTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"department": stringProp("Optional department name, e.g. HR"),
	})
}

func (t *ListEmployeesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "list employees"); denied {
		return msg, nil
	}
	var in struct {
		Department string `json:"department"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	doc, err := t.Store.List(ctx, in.Department)
	if err != nil {
		return storeResult(err)
	}
	return toJSON(doc)
}

// AddEmployeeTool hires a new employee into a department.
type AddEmployeeTool struct {
	Access
	Store EmployeeStore
}

func (t *AddEmployeeTool) Name() string { return roles.AddEmployee }
func (t *AddEmployeeTool) Description() string {
	return "Add a new employee to a department."
}
func (t *AddEmployeeTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"name":       stringProp("Employee full name"),
		"department": stringProp("Department: HR, Management, Tech or General"),
		"position":   stringProp("Job title"),
	}, "name", "department", "position")
}

func (t *AddEmployeeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "add employees"); denied {
		return msg, nil
	}
	var in struct {
		Name       string `json:"name"`
		Department string `json:"department"`
		Position   string `json:"position"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	emp, err := t.Store.Add(ctx, in.Name, in.Department, in.Position)
	if err != nil {
		return storeResult(err)
	}
	t.Seat.RecordActivity(fmt.Sprintf("Added employee %s to %s as %s", emp.Name, in.Department, emp.Position))
	return fmt.Sprintf("Successfully added employee %s to %s as %s.", emp.Name, in.Department, emp.Position), nil
}

// UpdateEmployeeTool changes an employee's position.
type UpdateEmployeeTool struct {
	Access
	Store EmployeeStore
}

func (t *UpdateEmployeeTool) Name() string { return roles.UpdateEmployee }
func (t *UpdateEmployeeTool) Description() string {
	return "Update an existing employee's position."
}
func (t *UpdateEmployeeTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"name":         stringProp("Employee name"),
		"department":   stringProp("Department the employee belongs to"),
		"new_position": stringProp("Optional new job title"),
	}, "name", "department")
}

func (t *UpdateEmployeeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "update employees"); denied {
		return msg, nil
	}
	var in struct {
		Name        string `json:"name"`
		Department  string `json:"department"`
		NewPosition string `json:"new_position"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	emp, err := t.Store.Update(ctx, in.Name, in.Department, in.NewPosition)
	if err != nil {
		return storeResult(err)
	}
	t.Seat.RecordActivity(fmt.Sprintf("Updated employee %s in %s", emp.Name, in.Department))
	return fmt.Sprintf("Successfully updated employee %s.", emp.Name), nil
}

// RemoveEmployeeTool removes an employee from a department.
type RemoveEmployeeTool struct {
	Access
	Store EmployeeStore
}

func (t *RemoveEmployeeTool) Name() string        { return roles.RemoveEmployee }
func (t *RemoveEmployeeTool) Description() string { return "Remove an employee from a department." }
func (t *RemoveEmployeeTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"name":       stringProp("Employee name"),
		"department": stringProp("Department the employee belongs to"),
	}, "name", "department")
}

func (t *RemoveEmployeeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "remove employees"); denied {
		return msg, nil
	}
	var in struct {
		Name       string `json:"name"`
		Department string `json:"department"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	emp, err := t.Store.Remove(ctx, in.Name, in.Department)
	if err != nil {
		return storeResult(err)
	}
	t.Seat.RecordActivity(fmt.Sprintf("Removed employee %s from %s", emp.Name, in.Department))
	return fmt.Sprintf("Successfully removed employee %s from %s.", emp.Name, in.Department), nil
}

// DepartmentStatsTool reports headcount and position counts.
type DepartmentStatsTool struct {
	Access
	Store EmployeeStore
}

func (t *DepartmentStatsTool) Name() string { return roles.ViewDepartmentStats }
func (t *DepartmentStatsTool) Description() string {
	return "Show headcount and position counts per department."
}
func (t *DepartmentStatsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"department": stringProp("Optional department to restrict the stats to"),
	})
}

func (t *DepartmentStatsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "view department stats"); denied {
		return msg, nil
	}
	var in struct {
		Department string `json:"department"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	stats, err := t.Store.Stats(ctx, in.Department)
	if err != nil {
		return storeResult(err)
	}
	return toJSON(stats)
}

// ReportTool produces a plain-text headcount report.
type ReportTool struct {
	Access
	Store EmployeeStore
}

func (t *ReportTool) Name() string { return roles.GenerateReport }
func (t *ReportTool) Description() string {
	return "Generate a headcount report with position breakdown and most recent hire."
}
func (t *ReportTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"department": stringProp("Optional department to report on"),
	})
}

func (t *ReportTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "generate reports"); denied {
		return msg, nil
	}
	var in struct {
		Department string `json:"department"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	report, err := t.Store.Report(ctx, in.Department)
	if err != nil {
		return storeResult(err)
	}
	return report, nil
}
