// Package stats answers aggregate questions about the index.
package stats

import (
	"database/sql"

	"github.com/Zuo-Peng/mmem/internal/index"
)

type Summary struct {
	SessionCount    int    `json:"session_count" yaml:"session_count"`
	OldestMessageAt string `json:"oldest_message_at,omitempty" yaml:"oldest_message_at,omitempty"`
	NewestMessageAt string `json:"newest_message_at,omitempty" yaml:"newest_message_at,omitempty"`
}

type AgentCount struct {
	Agent string `json:"agent" yaml:"agent"`
	Count int    `json:"count" yaml:"count"`
}

// UnknownAgent labels sessions with no recorded agent.
const UnknownAgent = "(unknown)"

// Load counts sessions and reports the oldest and newest last_message_at.
func Load(db *index.DB) (Summary, error) {
	var s Summary
	var oldest, newest sql.NullString
	err := db.Raw().QueryRow(
		`SELECT COUNT(*), MIN(last_message_at), MAX(last_message_at) FROM sessions`,
	).Scan(&s.SessionCount, &oldest, &newest)
	if err != nil {
		return Summary{}, &index.StoreError{Op: "stats", Err: err}
	}
	s.OldestMessageAt, s.NewestMessageAt = oldest.String, newest.String
	return s, nil
}

// Agents lists agents by session count, most sessions first.
func Agents(db *index.DB) ([]AgentCount, error) {
	rows, err := db.Raw().Query(`
		SELECT COALESCE(agent, ?) AS name, COUNT(*) AS n
		FROM sessions
		GROUP BY name
		ORDER BY n DESC, name ASC
	`, UnknownAgent)
	if err != nil {
		return nil, &index.StoreError{Op: "agents", Err: err}
	}
	defer rows.Close()

	var out []AgentCount
	for rows.Next() {
		var a AgentCount
		if err := rows.Scan(&a.Agent, &a.Count); err != nil {
			return nil, &index.StoreError{Op: "agents", Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &index.StoreError{Op: "agents", Err: err}
	}
	return out, nil
}
