// Package doctor checks that the transcript root and the index are usable.
package doctor

import (
	"os"

	"github.com/dustin/go-humanize"

	"github.com/Zuo-Peng/mmem/internal/index"
	"github.com/Zuo-Peng/mmem/internal/stats"
)

type Report struct {
	Root            string `json:"root" yaml:"root"`
	RootExists      bool   `json:"root_exists" yaml:"root_exists"`
	DBPath          string `json:"db_path" yaml:"db_path"`
	DBExists        bool   `json:"db_exists" yaml:"db_exists"`
	DBSize          string `json:"db_size,omitempty" yaml:"db_size,omitempty"`
	SchemaOK        bool   `json:"schema_ok" yaml:"schema_ok"`
	SchemaError     string `json:"schema_error,omitempty" yaml:"schema_error,omitempty"`
	FTS5Available   bool   `json:"fts5_available" yaml:"fts5_available"`
	IndexedSessions int    `json:"indexed_sessions" yaml:"indexed_sessions"`
	NewestMessageAt string `json:"newest_message_at,omitempty" yaml:"newest_message_at,omitempty"`
}

// Run inspects root and the index at dbPath. It never creates or modifies
// either; a missing index is reported, not an error.
func Run(dbPath, root string) Report {
	r := Report{Root: root, DBPath: dbPath}

	if info, err := os.Stat(root); err == nil && info.IsDir() {
		r.RootExists = true
	}
	r.FTS5Available = probeFTS5()

	info, err := os.Stat(dbPath)
	if err != nil {
		return r
	}
	r.DBExists = true
	r.DBSize = humanize.Bytes(uint64(info.Size()))

	db, err := index.OpenExisting(dbPath)
	if err != nil {
		r.SchemaError = err.Error()
		return r
	}
	defer db.Close()

	s, err := stats.Load(db)
	if err != nil {
		r.SchemaError = err.Error()
		return r
	}
	r.SchemaOK = true
	r.IndexedSessions = s.SessionCount
	r.NewestMessageAt = s.NewestMessageAt
	return r
}

// probeFTS5 builds the full schema in a throwaway in-memory database.
func probeFTS5() bool {
	db, err := index.OpenDB(":memory:")
	if err != nil {
		return false
	}
	db.Close()
	return true
}
