// Package employees is the department → employee record store shared by all agents.
package employees

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Default departments seeded into a fresh store.
var DefaultDepartments = []string{"HR", "Management", "Tech", "General"}

// Employee is one record in a department.
type Employee struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	HireDate string `json:"hire_date"`
}

// Document is the whole persisted store: department → ordered employees.
type Document map[string][]Employee

// DefaultDocument returns a document with every default department, empty.
func DefaultDocument() Document {
	doc := make(Document, len(DefaultDepartments))
	for _, d := range DefaultDepartments {
		doc[d] = []Employee{}
	}
	return doc
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for dept, emps := range d {
		cp := make([]Employee, len(emps))
		copy(cp, emps)
		out[dept] = cp
	}
	return out
}

// Departments returns the department names, sorted.
func (d Document) Departments() []string {
	out := make([]string, 0, len(d))
	for dept := range d {
		out = append(out, dept)
	}
	sort.Strings(out)
	return out
}

var (
	ErrMissingField      = errors.New("all fields (name, department, position) are required")
	ErrUnknownDepartment = errors.New("department not found")
	ErrDuplicate         = errors.New("employee already exists")
	ErrNotFound          = errors.New("employee not found")
)

// IsValidation reports whether err is a caller mistake rather than a store failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrUnknownDepartment) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrNotFound)
}

// DepartmentStats summarizes one department.
type DepartmentStats struct {
	TotalEmployees int            `json:"total_employees"`
	Positions      map[string]int `json:"positions"`
}

// Store serializes every read-modify-write of the document behind one mutex,
// so concurrent agents never lose each other's updates.
type Store struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
}

// NewStore wraps a backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// List returns all departments, or only the named one. An unknown department
// lists as empty.
func (s *Store) List(ctx context.Context, department string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if department == "" {
		return doc.Clone(), nil
	}
	return Document{department: append([]Employee{}, doc[department]...)}, nil
}

// Add appends a new employee and persists the document.
func (s *Store) Add(ctx context.Context, name, department, position string) (Employee, error) {
	name, department, position = strings.TrimSpace(name), strings.TrimSpace(department), strings.TrimSpace(position)
	if name == "" || department == "" || position == "" {
		return Employee{}, ErrMissingField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return Employee{}, err
	}
	emps, ok := doc[department]
	if !ok {
		return Employee{}, fmt.Errorf("%w: '%s'", ErrUnknownDepartment, department)
	}
	for _, e := range emps {
		if e.Name == name {
			return Employee{}, fmt.Errorf("%w: '%s' in %s", ErrDuplicate, name, department)
		}
	}

	emp := Employee{Name: name, Position: position, HireDate: s.now().Format(time.RFC3339)}
	doc[department] = append(emps, emp)
	if err := s.backend.Save(ctx, doc); err != nil {
		return Employee{}, err
	}
	return emp, nil
}

// Update changes an employee's position. An empty newPosition leaves the
// record as is but still confirms the employee exists.
func (s *Store) Update(ctx context.Context, name, department, newPosition string) (Employee, error) {
	name, department = strings.TrimSpace(name), strings.TrimSpace(department)

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return Employee{}, err
	}
	emps, ok := doc[department]
	if !ok {
		return Employee{}, fmt.Errorf("%w: '%s'", ErrUnknownDepartment, department)
	}
	for i := range emps {
		if emps[i].Name != name {
			continue
		}
		if p := strings.TrimSpace(newPosition); p != "" {
			emps[i].Position = p
		}
		if err := s.backend.Save(ctx, doc); err != nil {
			return Employee{}, err
		}
		return emps[i], nil
	}
	return Employee{}, fmt.Errorf("%w: '%s' in %s", ErrNotFound, name, department)
}

// Remove deletes an employee and persists the document.
func (s *Store) Remove(ctx context.Context, name, department string) (Employee, error) {
	name, department = strings.TrimSpace(name), strings.TrimSpace(department)

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return Employee{}, err
	}
	emps, ok := doc[department]
	if !ok {
		return Employee{}, fmt.Errorf("%w: '%s'", ErrUnknownDepartment, department)
	}
	for i, e := range emps {
		if e.Name != name {
			continue
		}
		doc[department] = append(emps[:i:i], emps[i+1:]...)
		if err := s.backend.Save(ctx, doc); err != nil {
			return Employee{}, err
		}
		return e, nil
	}
	return Employee{}, fmt.Errorf("%w: '%s' in %s", ErrNotFound, name, department)
}

// Stats returns per-department headcount and position counts. An unknown
// department yields an empty map.
func (s *Store) Stats(ctx context.Context, department string) (map[string]DepartmentStats, error) {
	doc, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	stats := make(map[string]DepartmentStats)
	for dept, emps := range doc {
		if department != "" && dept != department {
			continue
		}
		st := DepartmentStats{TotalEmployees: len(emps), Positions: map[string]int{}}
		for _, e := range emps {
			st.Positions[e.Position]++
		}
		stats[dept] = st
	}
	return stats, nil
}

// Report renders a plain-text headcount report.
func (s *Store) Report(ctx context.Context, department string) (string, error) {
	doc, err := s.List(ctx, "")
	if err != nil {
		return "", err
	}
	if department != "" {
		if _, ok := doc[department]; !ok {
			return "", fmt.Errorf("%w: '%s'", ErrUnknownDepartment, department)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Headcount report (%s)\n", s.now().Format(time.RFC3339))
	total := 0
	for _, dept := range doc.Departments() {
		if department != "" && dept != department {
			continue
		}
		emps := doc[dept]
		total += len(emps)
		fmt.Fprintf(&sb, "\n%s: %d employee(s)\n", dept, len(emps))

		counts := map[string]int{}
		for _, e := range emps {
			counts[e.Position]++
		}
		positions := make([]string, 0, len(counts))
		for p := range counts {
			positions = append(positions, p)
		}
		sort.Strings(positions)
		for _, p := range positions {
			fmt.Fprintf(&sb, "  - %s: %d\n", p, counts[p])
		}
		if latest, ok := mostRecentHire(emps); ok {
			fmt.Fprintf(&sb, "  most recent hire: %s (%s)\n", latest.Name, latest.HireDate)
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %d\n", total)
	return sb.String(), nil
}

func mostRecentHire(emps []Employee) (Employee, bool) {
	var (
		best     Employee
		bestTime time.Time
		found    bool
	)
	for _, e := range emps {
		t, err := time.Parse(time.RFC3339, e.HireDate)
		if err != nil {
			continue
		}
		if !found || t.After(bestTime) {
			best, bestTime, found = e, t, true
		}
	}
	return best, found
}
