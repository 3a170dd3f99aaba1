package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	name   string
	args   []string
	stderr []byte
	code   int
	err    error
}

func (r *recordingRunner) Run(_ context.Context, _ io.Writer, name string, args ...string) ([]byte, int, error) {
	r.name = name
	r.args = args
	return r.stderr, r.code, r.err
}

func TestNewCloner(t *testing.T) {
	c, err := NewCloner("", nil)
	require.NoError(t, err)
	assert.IsType(t, &GoGitCloner{}, c)

	c, err = NewCloner("exec", nil)
	require.NoError(t, err)
	assert.IsType(t, &ExecCloner{}, c)
	assert.Equal(t, "exec", c.String())

	_, err = NewCloner("svn", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gogit, exec")
}

func TestExecCloner_Args(t *testing.T) {
	r := &recordingRunner{}
	c := NewExecCloner(ExecRunnerWith(r), ExecBinary("/usr/bin/git"))

	checkout := DefaultCheckout()
	require.NoError(t, c.Clone(context.Background(), checkout, "/tmp/solana-v1.10"))
	assert.Equal(t, "/usr/bin/git", r.name)
	assert.Equal(t, []string{"clone", "--branch", "v1.10", "--", DefaultURL, "/tmp/solana-v1.10"}, r.args)

	checkout.Branch = "refs/tags/v1.10.41"
	checkout.Depth = 1
	require.NoError(t, c.Clone(context.Background(), checkout, "/tmp/x"))
	assert.Equal(t, []string{"clone", "--branch", "v1.10.41", "--depth", "1", "--", DefaultURL, "/tmp/x"}, r.args)
}

func TestExecCloner_Failure(t *testing.T) {
	r := &recordingRunner{
		stderr: []byte("fatal: repository not found\n"),
		code:   128,
		err:    errors.New("exit status 128"),
	}
	c := NewExecCloner(ExecRunnerWith(r))
	err := c.Clone(context.Background(), DefaultCheckout(), "/tmp/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 128")
	assert.Contains(t, err.Error(), "repository not found")
}

func TestExecRunner_MissingBinary(t *testing.T) {
	var out bytes.Buffer
	_, code, err := ExecRunner{}.Run(context.Background(), &out, "voteview-no-such-binary")
	require.Error(t, err)
	assert.Equal(t, 127, code)
}

func TestGoGitCloner_Options(t *testing.T) {
	var progress bytes.Buffer
	c := NewGoGitCloner(GoGitProgress(&progress))

	opts := c.cloneOptions(DefaultCheckout())
	assert.Equal(t, DefaultURL, opts.URL)
	assert.Equal(t, plumbing.NewBranchReferenceName("v1.10"), opts.ReferenceName)
	assert.False(t, opts.SingleBranch)
	assert.NotNil(t, opts.Progress)
	// same as a plain git clone: submodules are left alone
	assert.Equal(t, git.NoRecurseSubmodules, opts.RecurseSubmodules)

	checkout := DefaultCheckout()
	checkout.Branch = "refs/tags/v1.10.41"
	checkout.Depth = 1
	opts = NewGoGitCloner().cloneOptions(checkout)
	assert.Equal(t, plumbing.ReferenceName("refs/tags/v1.10.41"), opts.ReferenceName)
	assert.True(t, opts.SingleBranch)
	assert.Equal(t, 1, opts.Depth)
	assert.Nil(t, opts.Progress)
}

// fixtureRemote builds a local repository with a v1.10 branch
func fixtureRemote(t *testing.T) string {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sdk"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sdk", "Cargo.toml"), []byte("[package]\nname = \"solana-sdk\"\n"), 0o600))
	_, err = wt.Add("sdk/Cargo.toml")
	require.NoError(t, err)
	hash, err := wt.Commit("sdk", &git.CommitOptions{
		Author: &object.Signature{Name: "voteview", Email: "voteview@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(DefaultBranch), hash)))
	return dir
}

func TestEnsure_LocalRemote(t *testing.T) {
	for _, toPin := range []struct {
		backend Backend
		needs   string
	}{
		{backend: BackendGoGit},
		{backend: BackendExec, needs: "git"},
	} {
		tc := toPin
		t.Run(string(tc.backend), func(t *testing.T) {
			if tc.needs != "" {
				if _, err := exec.LookPath(tc.needs); err != nil {
					t.Skipf("%s not installed", tc.needs)
				}
			}
			cloner, err := NewCloner(string(tc.backend), nil)
			require.NoError(t, err)

			checkout := DefaultCheckout()
			checkout.URL = fixtureRemote(t)
			checkout.BaseDir = t.TempDir()
			target := filepath.Join(checkout.BaseDir, DefaultDir)
			opts := []Option{WithFs(afero.NewOsFs()), WithCloner(cloner)}

			res, err := Ensure(context.Background(), checkout, opts...)
			require.NoError(t, err)
			assert.Equal(t, Cloned, res.Outcome)
			assert.Equal(t, target, res.Target)
			assert.Greater(t, res.Size, int64(0))
			assert.FileExists(t, filepath.Join(target, "sdk", "Cargo.toml"))

			res, err = Ensure(context.Background(), checkout, opts...)
			require.NoError(t, err)
			assert.Equal(t, Skipped, res.Outcome)
			assert.Zero(t, res.Size)

			checkout.Dir = "solana-missing"
			checkout.Branch = "v9.99"
			res, err = Ensure(context.Background(), checkout, opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCloneFailed))
			assert.NoDirExists(t, res.Target)
		})
	}
}
