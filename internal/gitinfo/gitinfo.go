// Package gitinfo derives repository context (root, name, branch) for a
// workspace directory by asking git.
package gitinfo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes git in dir and returns its trimmed stdout.
type Runner interface {
	Output(dir string, args ...string) (string, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct{}

func (ExecRunner) Output(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Info is best-effort: any field may be empty.
type Info struct {
	RepoRoot string
	RepoName string
	Branch   string
}

// Cache memoizes lookups per workspace directory. One Cache lives for the
// duration of one sync run.
type Cache struct {
	runner  Runner
	entries map[string]Info
}

func NewCache(r Runner) *Cache {
	if r == nil {
		r = ExecRunner{}
	}
	return &Cache{runner: r, entries: make(map[string]Info)}
}

// Lookup resolves workspace to its repository. Failures of any kind leave
// the corresponding fields empty.
func (c *Cache) Lookup(workspace string) Info {
	if workspace == "" {
		return Info{}
	}
	if info, ok := c.entries[workspace]; ok {
		return info
	}
	info := c.resolve(workspace)
	c.entries[workspace] = info
	return info
}

func (c *Cache) resolve(workspace string) Info {
	top, err := c.runner.Output(workspace, "rev-parse", "--show-toplevel")
	if err != nil || top == "" {
		return Info{}
	}
	root, err := filepath.EvalSymlinks(top)
	if err != nil {
		return Info{}
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return Info{}
	}

	info := Info{RepoRoot: root, RepoName: filepath.Base(root)}
	branch, err := c.runner.Output(root, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil && branch != "HEAD" {
		info.Branch = branch
	}
	return info
}
