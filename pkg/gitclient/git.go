// Package gitclient wraps the git binary as a subprocess, giving every
// operation a context.Context suspension point the orchestrator can
// forcefully cancel: SIGTERM on timeout, then a grace period, then SIGKILL.
package gitclient

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

// killGrace is how long a command gets to exit after SIGTERM before the
// client escalates to SIGKILL.
const killGrace = 5 * time.Second

// Client runs git commands against a single working directory.
type Client struct {
	// AuthToken, when set, is rewritten into https:// remote URLs as
	// oauth2:<token> for the duration of clone/pull. SSH remotes are left
	// untouched; SSH auth is delegated to the host's git configuration.
	AuthToken string
}

// New constructs a Client. An empty authToken disables HTTPS URL rewriting.
func New(authToken string) *Client {
	return &Client{AuthToken: authToken}
}

// FileChange is one entry of a name-status diff.
type FileChange struct {
	Status  string // "A", "M", "D", "R"
	Path    string
	OldPath string // set only for renames ("R"); the pre-rename path
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return stdout.String(), stderr.String(), err
}

func (c *Client) runChecked(ctx context.Context, op, dir string, args ...string) (string, error) {
	out, stderr, err := c.run(ctx, dir, args...)
	if err != nil {
		return out, c.classify(op, args, stderr, err)
	}

	return out, nil
}

func (c *Client) classify(op string, args []string, stderr string, cause error) error {
	joined := strings.Join(args, " ")

	switch {
	case ctxErrIsTimeout(cause):
		return errs.Wrap(errs.KindTimeout, op, "GIT_TIMEOUT", cause, "git %s timed out", joined)
	case strings.Contains(stderr, "Authentication failed"), strings.Contains(stderr, "could not read Username"):
		return errs.Wrap(errs.KindAuth, op, "GIT_AUTH_REJECTED", cause, "git %s: %s", joined, strings.TrimSpace(stderr))
	case strings.Contains(stderr, "Could not resolve host"), strings.Contains(stderr, "unable to access"):
		return errs.Wrap(errs.KindTransport, op, "GIT_TRANSPORT", cause, "git %s: %s", joined, strings.TrimSpace(stderr))
	default:
		return errs.Wrap(errs.KindTransport, op, "GIT_COMMAND_FAILED", cause, "git %s: %s", joined, strings.TrimSpace(stderr))
	}
}

func ctxErrIsTimeout(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "signal: killed") ||
		strings.Contains(err.Error(), "signal: terminated"))
}

// rewriteAuthURL rewrites an https:// remote URL to carry the oauth2 token,
// leaving ssh:// and git@ remotes untouched.
func (c *Client) rewriteAuthURL(remoteURL string) string {
	if c.AuthToken == "" || !strings.HasPrefix(remoteURL, "https://") {
		return remoteURL
	}

	rest := strings.TrimPrefix(remoteURL, "https://")

	return "https://oauth2:" + c.AuthToken + "@" + rest
}

// Clone clones remoteURL at branch into dir, which must not already exist.
func (c *Client) Clone(ctx context.Context, remoteURL, branch, dir string) error {
	url := c.rewriteAuthURL(remoteURL)

	_, err := c.runChecked(ctx, "gitclient.Clone", ".", "clone", "--branch", branch, "--single-branch", url, dir)

	return err
}

// Pull fast-forwards dir's current branch from its configured remote.
func (c *Client) Pull(ctx context.Context, dir string) error {
	_, err := c.runChecked(ctx, "gitclient.Pull", dir, "pull", "--ff-only")

	return err
}

// HeadSHA returns the current HEAD commit hash of dir.
func (c *Client) HeadSHA(ctx context.Context, dir string) (string, error) {
	out, err := c.runChecked(ctx, "gitclient.HeadSHA", dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// ListFiles lists every tracked file path in dir, relative to dir.
func (c *Client) ListFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := c.runChecked(ctx, "gitclient.ListFiles", dir, "ls-files")
	if err != nil {
		return nil, err
	}

	return splitNonEmptyLines(out), nil
}

// DiffNameStatus computes the name-status diff between baseCommit and HEAD,
// bucketed by operation. Renames appear once with both OldPath and Path set;
// callers fold a rename into filesDeleted(OldPath)+filesAdded(Path) per the
// task contract.
func (c *Client) DiffNameStatus(ctx context.Context, dir, baseCommit string) ([]FileChange, error) {
	out, err := c.runChecked(ctx, "gitclient.DiffNameStatus", dir,
		"diff", "--name-status", "-M", baseCommit+"..HEAD")
	if err != nil {
		return nil, err
	}

	var changes []FileChange

	for _, line := range splitNonEmptyLines(out) {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}

		status := fields[0]

		switch {
		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			changes = append(changes, FileChange{Status: "R", OldPath: fields[1], Path: fields[2]})
		default:
			changes = append(changes, FileChange{Status: status[:1], Path: fields[1]})
		}
	}

	return changes, nil
}

// EnableSparseCheckout writes patterns into the repository's sparse-checkout
// info file and applies them via a read-tree update.
func (c *Client) EnableSparseCheckout(ctx context.Context, dir string, patterns []string) error {
	if _, err := c.runChecked(ctx, "gitclient.EnableSparseCheckout", dir, "sparse-checkout", "init"); err != nil {
		return err
	}

	args := append([]string{"sparse-checkout", "set"}, patterns...)
	if _, err := c.runChecked(ctx, "gitclient.EnableSparseCheckout", dir, args...); err != nil {
		return err
	}

	_, err := c.runChecked(ctx, "gitclient.EnableSparseCheckout", dir, "read-tree", "-mu", "HEAD")

	return err
}

func splitNonEmptyLines(s string) []string {
	var out []string

	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
