// Package timeline journals agent activity and tool invocations to SQLite.
package timeline

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// Activity is one entry of an agent's activity log.
type Activity struct {
	ID        int64     `json:"id"`
	Agent     string    `json:"agent"`
	Role      string    `json:"role"`
	Channel   string    `json:"channel"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolCall records one tool invocation attempt, allowed or denied.
type ToolCall struct {
	ID         int64     `json:"id"`
	CallID     string    `json:"call_id"`
	Agent      string    `json:"agent"`
	Role       string    `json:"role"`
	Tool       string    `json:"tool"`
	Arguments  string    `json:"arguments"`
	Allowed    bool      `json:"allowed"`
	Result     string    `json:"result"`
	ErrorText  string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows queries. Zero values mean "any".
type Filter struct {
	Agent  string
	Tool   string
	Since  *time.Time
	Limit  int
	Offset int
}

// Service wraps the SQLite database.
type Service struct {
	db *sql.DB
}

// NewService opens (creating if needed) the journal at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Printf("[Timeline] Opened %s", dbPath)
	return &Service{db: db}, nil
}

// DB exposes the handle for ad-hoc queries.
func (s *Service) DB() *sql.DB { return s.db }

func (s *Service) Close() error {
	return s.db.Close()
}

// RecordActivity appends an activity entry.
func (s *Service) RecordActivity(ctx context.Context, a Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (agent, role, channel, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Agent, a.Role, a.Channel, a.Text, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// RecordToolCall appends a tool call record.
func (s *Service) RecordToolCall(ctx context.Context, c ToolCall) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Arguments == "" {
		c.Arguments = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (call_id, agent, role, tool, arguments, allowed, result, error_text, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CallID, c.Agent, c.Role, c.Tool, c.Arguments, c.Allowed, c.Result, c.ErrorText, c.DurationMs, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert tool call: %w", err)
	}
	return nil
}

// Activities returns entries newest first.
func (s *Service) Activities(ctx context.Context, f Filter) ([]Activity, error) {
	query := `SELECT id, agent, role, channel, text, created_at FROM activity WHERE 1=1`
	args := []interface{}{}
	if f.Agent != "" {
		query += " AND agent = ?"
		args = append(args, f.Agent)
	}
	if f.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC())
	}
	query, args = paginate(query+" ORDER BY created_at DESC, id DESC", args, f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Agent, &a.Role, &a.Channel, &a.Text, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ToolCalls returns tool call records newest first.
func (s *Service) ToolCalls(ctx context.Context, f Filter) ([]ToolCall, error) {
	query := `SELECT id, call_id, agent, role, tool, arguments, allowed, result, error_text, duration_ms, created_at FROM tool_calls WHERE 1=1`
	args := []interface{}{}
	if f.Agent != "" {
		query += " AND agent = ?"
		args = append(args, f.Agent)
	}
	if f.Tool != "" {
		query += " AND tool = ?"
		args = append(args, f.Tool)
	}
	if f.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC())
	}
	query, args = paginate(query+" ORDER BY created_at DESC, id DESC", args, f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolCall
	for rows.Next() {
		var c ToolCall
		if err := rows.Scan(&c.ID, &c.CallID, &c.Agent, &c.Role, &c.Tool, &c.Arguments, &c.Allowed,
			&c.Result, &c.ErrorText, &c.DurationMs, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeniedCount returns how many tool calls were refused, per agent.
func (s *Service) DeniedCount(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent, COUNT(*) FROM tool_calls WHERE allowed = 0 GROUP BY agent`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var agent string
		var n int
		if err := rows.Scan(&agent, &n); err != nil {
			return nil, err
		}
		out[agent] = n
	}
	return out, rows.Err()
}

func paginate(query string, args []interface{}, f Filter) (string, []interface{}) {
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}
	return query, args
}
