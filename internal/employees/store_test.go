package employees

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "employees.json")
	s := NewStore(NewFileBackend(path))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s, path
}

func TestStore_ListDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	doc, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "HR", "Management", "Tech"}, doc.Departments())

	one, err := s.List(context.Background(), "Finance")
	require.NoError(t, err)
	assert.Equal(t, Document{"Finance": {}}, one)
}

func TestStore_AddAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	emp, err := s.Add(ctx, "Alice", "HR", "Recruiter")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T09:00:00Z", emp.HireDate)

	_, err = s.Add(ctx, "Alice", "HR", "Recruiter")
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, IsValidation(err))

	doc, err := s.List(ctx, "HR")
	require.NoError(t, err)
	require.Len(t, doc["HR"], 1)
	assert.Equal(t, "Recruiter", doc["HR"][0].Position)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "document persisted")
}

func TestStore_AddValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Add(ctx, "", "HR", "Recruiter")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = s.Add(ctx, "Bob", "Finance", "Analyst")
	assert.ErrorIs(t, err, ErrUnknownDepartment)
	assert.Contains(t, err.Error(), "Finance")
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.Add(ctx, "Alice", "HR", "Recruiter")
	require.NoError(t, err)

	emp, err := s.Update(ctx, "Alice", "HR", "Head of HR")
	require.NoError(t, err)
	assert.Equal(t, "Head of HR", emp.Position)

	emp, err = s.Update(ctx, "Alice", "HR", "")
	require.NoError(t, err)
	assert.Equal(t, "Head of HR", emp.Position)

	_, err = s.Update(ctx, "Zed", "HR", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(ctx, "Alice", "Finance", "x")
	assert.ErrorIs(t, err, ErrUnknownDepartment)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	for _, n := range []string{"A", "B", "C"} {
		_, err := s.Add(ctx, n, "Tech", "Engineer")
		require.NoError(t, err)
	}

	_, err := s.Remove(ctx, "B", "Tech")
	require.NoError(t, err)
	doc, _ := s.List(ctx, "Tech")
	require.Len(t, doc["Tech"], 2)
	assert.Equal(t, "A", doc["Tech"][0].Name)
	assert.Equal(t, "C", doc["Tech"][1].Name)

	_, err = s.Remove(ctx, "B", "Tech")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateAndRemoveTrimNames(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.Add(ctx, " Alice ", " HR", "Recruiter")
	require.NoError(t, err)

	emp, err := s.Update(ctx, " Alice", "HR ", "Lead Recruiter")
	require.NoError(t, err)
	assert.Equal(t, "Lead Recruiter", emp.Position)

	emp, err = s.Remove(ctx, "Alice ", " HR")
	require.NoError(t, err)
	assert.Equal(t, "Alice", emp.Name)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Add(ctx, "A", "Tech", "Engineer")
	s.Add(ctx, "B", "Tech", "Engineer")
	s.Add(ctx, "C", "Tech", "Lead")

	stats, err := s.Stats(ctx, "Tech")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats["Tech"].TotalEmployees)
	assert.Equal(t, map[string]int{"Engineer": 2, "Lead": 1}, stats["Tech"].Positions)

	all, err := s.Stats(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := s.Stats(ctx, "Finance")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_Report(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Add(ctx, "A", "Tech", "Engineer")

	report, err := s.Report(ctx, "Tech")
	require.NoError(t, err)
	assert.Contains(t, report, "Tech: 1 employee(s)")
	assert.Contains(t, report, "- Engineer: 1")
	assert.Contains(t, report, "most recent hire: A")
	assert.NotContains(t, report, "HR:")

	_, err = s.Report(ctx, "Finance")
	assert.ErrorIs(t, err, ErrUnknownDepartment)
}

// Concurrent adds of distinct names must all survive.
func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Add(ctx, fmt.Sprintf("emp-%d", i), "General", "Associate")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	fresh := NewStore(NewFileBackend(path))
	doc, err := fresh.List(ctx, "General")
	require.NoError(t, err)
	assert.Len(t, doc["General"], n)
}

type failingBackend struct{ err error }

func (f failingBackend) Load(context.Context) (Document, error) { return nil, f.err }
func (f failingBackend) Save(context.Context, Document) error   { return f.err }

func TestStore_BackendErrorIsNotValidation(t *testing.T) {
	s := NewStore(failingBackend{err: errors.New("disk gone")})
	_, err := s.Add(context.Background(), "A", "HR", "x")
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "employees.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewFileBackend(path).Load(context.Background())
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend("file", "x.json", "")
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	b, err = OpenBackend("redis", "x.json", "")
	assert.Error(t, err, "redis not connected in tests")
	assert.IsType(t, &FileBackend{}, b)

	_, err = OpenBackend("mongo", "x.json", "")
	assert.Error(t, err)
}

func TestRedisBackend_Unavailable(t *testing.T) {
	_, err := NewRedisBackend("").Load(context.Background())
	assert.Error(t, err)
	assert.False(t, IsValidation(err))
}
