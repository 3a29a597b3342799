package gitclient_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/indexer/pkg/gitclient"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.local",
	)

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func initTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.name", "test")
	runGit(t, dir, "config", "user.email", "test@test.local")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "initial.txt"), []byte("hello"), 0o644))
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "initial")

	return dir
}

func TestHeadSHAAndListFiles(t *testing.T) {
	t.Parallel()

	dir := initTestRepo(t)
	client := gitclient.New("")
	ctx := context.Background()

	sha, err := client.HeadSHA(ctx, dir)
	require.NoError(t, err)
	require.Len(t, sha, 40)

	files, err := client.ListFiles(ctx, dir)
	require.NoError(t, err)
	require.Contains(t, files, "initial.txt")
}

func TestDiffNameStatusBucketsChanges(t *testing.T) {
	t.Parallel()

	dir := initTestRepo(t)
	client := gitclient.New("")
	ctx := context.Background()

	base, err := client.HeadSHA(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "added.txt"), []byte("new"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "initial.txt")))
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "second")

	changes, err := client.DiffNameStatus(ctx, dir, base)
	require.NoError(t, err)

	var sawAdd, sawDelete bool

	for _, c := range changes {
		switch {
		case c.Status == "A" && c.Path == "added.txt":
			sawAdd = true
		case c.Status == "D" && c.Path == "initial.txt":
			sawDelete = true
		}
	}

	require.True(t, sawAdd, "expected an added.txt A entry, got %+v", changes)
	require.True(t, sawDelete, "expected an initial.txt D entry, got %+v", changes)
}

func TestCloneTimeoutIsForceful(t *testing.T) {
	t.Parallel()

	client := gitclient.New("")
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)

	defer cancel()

	dest := filepath.Join(t.TempDir(), "clone-dest")
	err := client.Clone(ctx, "https://example.invalid/repo.git", "main", dest)
	require.Error(t, err)
}

func TestPullOnNonRepoFails(t *testing.T) {
	t.Parallel()

	client := gitclient.New("")
	err := client.Pull(context.Background(), t.TempDir())
	require.Error(t, err)
}
