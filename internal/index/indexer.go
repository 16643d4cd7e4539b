package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Zuo-Peng/mmem/internal/config"
	"github.com/Zuo-Peng/mmem/internal/gitinfo"
	"github.com/Zuo-Peng/mmem/internal/logging"
	"github.com/Zuo-Peng/mmem/internal/parse"
	"github.com/Zuo-Peng/mmem/internal/scan"
)

type Stats struct {
	Scanned     int `json:"scanned" yaml:"scanned"`
	Indexed     int `json:"indexed" yaml:"indexed"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Removed     int `json:"removed" yaml:"removed"`
	ParseErrors int `json:"parse_errors" yaml:"parse_errors"`
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d indexed=%d skipped=%d removed=%d parse_errors=%d",
		s.Scanned, s.Indexed, s.Skipped, s.Removed, s.ParseErrors)
}

type Options struct {
	// Full re-parses every file regardless of mtime and size.
	Full bool
	// Agent labels transcripts that declare none. Empty means infer it
	// from the root's name.
	Agent string
	// Git answers repository queries; nil runs the git binary.
	Git    gitinfo.Runner
	Logger *logrus.Entry
}

// Sync brings the index in line with the transcripts under root. The whole
// run is one transaction: either every change lands or none does.
func Sync(db *DB, root string, opts Options) (Stats, error) {
	var stats Stats
	log := opts.Logger
	if log == nil {
		log = logging.NewLogger("sync")
	}

	indexed, err := db.LoadIndexedSessions()
	if err != nil {
		return stats, err
	}
	known := make(map[string]IndexedSession, len(indexed))
	for _, s := range indexed {
		known[s.Path] = s
	}

	files, err := scan.Walk(root)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	repos := gitinfo.NewCache(opts.Git)
	agent := opts.Agent
	if agent == "" {
		agent = inferAgent(root)
	}
	seen := make(map[string]struct{}, len(files))

	for _, fi := range files {
		stats.Scanned++
		seen[fi.Path] = struct{}{}

		prev, wasIndexed := known[fi.Path]
		if !opts.Full && wasIndexed && prev.Mtime == fi.Mtime && prev.Size == fi.Size {
			stats.Skipped++
			continue
		}

		parsed, err := readAndParse(fi)
		if err != nil {
			log.WithField("path", fi.Path).WithError(err).Warn("parse failed")
			if wasIndexed {
				if err := tx.RemoveSession(fi.Path); err != nil {
					return stats, err
				}
				stats.Removed++
			}
			stats.ParseErrors++
			continue
		}

		rec := RecordFromParsed(fi, parsed)
		if rec.Agent == "" {
			rec.Agent = agent
		}
		if ws := resolveWorkspace(rec.Workspace, fi.Path); ws != "" {
			info := repos.Lookup(ws)
			if info.RepoRoot == "" {
				log.WithField("workspace", ws).Debug("no repository context")
			}
			rec.RepoRoot, rec.RepoName, rec.Branch = info.RepoRoot, info.RepoName, info.Branch
		}

		if err := tx.UpsertSession(rec); err != nil {
			return stats, err
		}
		if err := tx.ReplaceMessages(rec.Path, MessageRecords(parsed.Messages)); err != nil {
			return stats, err
		}
		stats.Indexed++
	}

	for path := range known {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := tx.RemoveSession(path); err != nil {
			return stats, err
		}
		stats.Removed++
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}
	log.WithField("root", root).Info(stats.String())
	return stats, nil
}

func readAndParse(fi scan.FileInfo) (*parse.Session, error) {
	raw, err := os.ReadFile(fi.Path)
	if err != nil {
		return nil, err
	}
	return parse.Normalize(fi.Format, raw)
}

// RecordFromParsed builds the persisted session row. Repository context is
// left for the caller to fill.
func RecordFromParsed(fi scan.FileInfo, s *parse.Session) *SessionRecord {
	return &SessionRecord{
		Path:          fi.Path,
		Mtime:         fi.Mtime,
		Size:          fi.Size,
		CreatedAt:     s.CreatedAt,
		LastMessageAt: s.LastMessageAt,
		Agent:         s.Agent,
		Workspace:     s.Workspace,
		Title:         s.Title,
		MessageCount:  s.MessageCount,
		Snippet:       s.Snippet,
		Content:       s.Content,
	}
}

// MessageRecords numbers messages by discovery order starting at zero.
func MessageRecords(msgs []parse.Message) []MessageRecord {
	out := make([]MessageRecord, len(msgs))
	for i, m := range msgs {
		out[i] = MessageRecord{
			TurnIndex: i,
			Role:      m.Role,
			Timestamp: m.Timestamp,
			Text:      m.Text,
		}
	}
	return out
}

// inferAgent names the agent after the sessions root, e.g.
// ~/.config/marvin/sessions -> "marvin".
func inferAgent(root string) string {
	root = filepath.Clean(root)
	name := filepath.Base(root)
	if name == "sessions" {
		name = filepath.Base(filepath.Dir(root))
	}
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// resolveWorkspace returns an existing workspace directory: the declared one
// when it exists, else one decoded from the transcript's parent directory.
func resolveWorkspace(declared, sessionPath string) string {
	if declared != "" {
		if p := config.ExpandHome(declared); isDir(p) {
			return p
		}
	}
	return decodeWorkspace(filepath.Base(filepath.Dir(sessionPath)))
}

// decodeWorkspace reverses the "--" for "/" flattening used to name
// per-workspace session directories.
func decodeWorkspace(component string) string {
	if !strings.Contains(component, "--") {
		return ""
	}
	decoded := strings.ReplaceAll(component, "--", "/")
	for strings.Contains(decoded, "//") {
		decoded = strings.ReplaceAll(decoded, "//", "/")
	}
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}
	if !isDir(decoded) {
		return ""
	}
	return decoded
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
