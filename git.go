package cairn

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// NoGitCommit is the cache scope used when the working directory is not a
// git repository. Cache entries under it survive until a real commit scope
// appears.
const NoGitCommit = "no-git"

// UnknownCommit is the commit value recorded in session rows outside a repo.
const UnknownCommit = "unknown"

// Git exposes the repository queries the agent needs. shellGit implements
// it by shelling out to the git binary; tests substitute a fake.
type Git interface {
	// Head returns the full hash of HEAD, or an error outside a repo.
	Head(ctx context.Context) (string, error)

	// ModifiedFiles returns paths with uncommitted changes (staged or not),
	// including untracked files. Renames report the new path.
	ModifiedFiles(ctx context.Context) ([]string, error)

	// Diff returns the combined staged+unstaged diff, optionally limited
	// to the given paths.
	Diff(ctx context.Context, paths ...string) (string, error)

	// Log returns the last n one-line commit subjects, newest first.
	Log(ctx context.Context, n int) ([]string, error)

	// RecentCommits returns the full hashes of the last n commits,
	// newest first.
	RecentCommits(ctx context.Context, n int) ([]string, error)
}

// NewGit returns a Git backed by the git binary, rooted at dir.
func NewGit(dir string) Git {
	return &shellGit{dir: dir}
}

type shellGit struct {
	dir string
}

const gitTimeout = 10 * time.Second

func (g *shellGit) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (g *shellGit) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *shellGit) ModifiedFiles(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		// Renames show as "old -> new"; the new path is what matters.
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		files = append(files, strings.Trim(path, `"`))
	}
	return files, nil
}

func (g *shellGit) Diff(ctx context.Context, paths ...string) (string, error) {
	args := []string{"diff", "HEAD"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	return g.run(ctx, args...)
}

func (g *shellGit) Log(ctx context.Context, n int) ([]string, error) {
	return g.logLines(ctx, n, "%h %s")
}

func (g *shellGit) RecentCommits(ctx context.Context, n int) ([]string, error) {
	return g.logLines(ctx, n, "%H")
}

func (g *shellGit) logLines(ctx context.Context, n int, format string) ([]string, error) {
	out, err := g.run(ctx, "log", fmt.Sprintf("-%d", n), "--pretty=format:"+format)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}
