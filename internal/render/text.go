package render

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Zuo-Peng/mmem/internal/doctor"
	"github.com/Zuo-Peng/mmem/internal/index"
	"github.com/Zuo-Peng/mmem/internal/search"
	"github.com/Zuo-Peng/mmem/internal/stats"
)

const (
	untitled = "(untitled)"
	unknown  = "(unknown)"
)

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// RelativeTime renders an RFC 3339 timestamp as "3 days ago". Anything
// else is returned unchanged.
func RelativeTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

// WriteSessions prints one block per session hit.
func WriteSessions(w io.Writer, hits []search.SessionHit, snippet bool) {
	for _, h := range hits {
		fmt.Fprintf(w, "%s | %s\n", orDefault(h.LastMessageAt, unknown), orDefault(h.Title, untitled))
		fmt.Fprintln(w, h.Path)
		if snippet {
			if s := TrimOutput(h.Snippet); s != "" {
				fmt.Fprintln(w, s)
			}
		}
		fmt.Fprintln(w)
	}
}

// WriteMessages prints one block per message hit, addressed as path#turn,
// followed by its context window when around > 0.
func WriteMessages(w io.Writer, hits []search.MessageHit, snippet bool, around int) {
	for _, h := range hits {
		fmt.Fprintf(w, "%s | %s\n", orDefault(h.Timestamp, unknown), orDefault(h.Title, untitled))
		fmt.Fprintf(w, "%s#%d\n", h.Path, h.TurnIndex)
		if snippet {
			if s := TrimOutput(h.Text); s != "" {
				fmt.Fprintln(w, s)
			}
		}
		if around > 0 {
			for _, c := range h.Context {
				text := TrimOutput(c.Text)
				if text == "" {
					continue
				}
				fmt.Fprintf(w, "  %d:%s %s\n", c.TurnIndex, orDefault(c.Role, "unknown"), text)
			}
		}
		fmt.Fprintln(w)
	}
}

func WriteIndexStats(w io.Writer, s index.Stats) {
	fmt.Fprintf(w, "scanned: %d\n", s.Scanned)
	fmt.Fprintf(w, "indexed: %d\n", s.Indexed)
	fmt.Fprintf(w, "skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "removed: %d\n", s.Removed)
	fmt.Fprintf(w, "parse_errors: %d\n", s.ParseErrors)
}

// WriteStats prints the summary. Parse failures are not persisted, so the
// count is always reported as unknown.
func WriteStats(w io.Writer, s stats.Summary) {
	fmt.Fprintf(w, "sessions: %d\n", s.SessionCount)
	fmt.Fprintf(w, "oldest: %s\n", orDefault(s.OldestMessageAt, unknown))
	fmt.Fprintf(w, "newest: %s\n", orDefault(s.NewestMessageAt, unknown))
	fmt.Fprintln(w, "parse_failures: unknown")
}

func WriteAgents(w io.Writer, agents []stats.AgentCount) {
	for _, a := range agents {
		fmt.Fprintf(w, "%6d  %s\n", a.Count, a.Agent)
	}
}

func WriteDoctor(w io.Writer, r doctor.Report) {
	fmt.Fprintf(w, "root: %s\n", r.Root)
	fmt.Fprintf(w, "root_exists: %t\n", r.RootExists)
	fmt.Fprintf(w, "db_path: %s\n", r.DBPath)
	fmt.Fprintf(w, "db_exists: %t\n", r.DBExists)
	if r.DBSize != "" {
		fmt.Fprintf(w, "db_size: %s\n", r.DBSize)
	}
	fmt.Fprintf(w, "schema_ok: %t\n", r.SchemaOK)
	if r.SchemaError != "" {
		fmt.Fprintf(w, "schema_error: %s\n", r.SchemaError)
	}
	fmt.Fprintf(w, "fts5_available: %t\n", r.FTS5Available)
	fmt.Fprintf(w, "indexed_sessions: %d\n", r.IndexedSessions)
	fmt.Fprintf(w, "newest_message_at: %s\n", orDefault(r.NewestMessageAt, unknown))
}
