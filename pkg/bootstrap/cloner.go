package bootstrap

import (
	"context"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Cloner knows how to clone a remote repository into a local directory
type Cloner interface {
	Clone(ctx context.Context, checkout Checkout, target string) error
	String() string
}

// Backend names a Cloner implementation
type Backend string

const (
	// BackendGoGit clones in-process with go-git
	BackendGoGit Backend = "gogit"

	// BackendExec clones by running the git binary
	BackendExec Backend = "exec"
)

// Backends lists the supported backends
func Backends() []string {
	return []string{string(BackendGoGit), string(BackendExec)}
}

// NewCloner builds the Cloner for a backend name. Progress is reported to w, when not nil.
func NewCloner(backend string, w io.Writer) (Cloner, error) {
	switch Backend(backend) {
	case BackendGoGit, "":
		return NewGoGitCloner(GoGitProgress(w)), nil
	case BackendExec:
		return NewExecCloner(ExecOutput(w)), nil
	default:
		return nil, ErrInvalidCheckout.Wrapf(nil, "unknown clone backend %q, expected one of %s", backend, strings.Join(Backends(), ", "))
	}
}

// GoGitCloner clones repositories without requiring a git installation
type GoGitCloner struct {
	progress io.Writer
}

// GoGitOption configures a GoGitCloner
type GoGitOption func(*GoGitCloner)

// GoGitProgress sends the remote sideband progress to w
func GoGitProgress(w io.Writer) GoGitOption {
	return func(c *GoGitCloner) {
		c.progress = w
	}
}

// NewGoGitCloner builds a go-git backed Cloner
func NewGoGitCloner(opts ...GoGitOption) *GoGitCloner {
	c := &GoGitCloner{}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

func (c *GoGitCloner) String() string {
	return string(BackendGoGit)
}

// Clone the checkout into target
func (c *GoGitCloner) Clone(ctx context.Context, checkout Checkout, target string) error {
	_, err := git.PlainCloneContext(ctx, target, false, c.cloneOptions(checkout))
	return err
}

func (c *GoGitCloner) cloneOptions(checkout Checkout) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:   checkout.URL,
		Depth: checkout.Depth,
	}
	if c.progress != nil {
		opts.Progress = c.progress
	}
	if ref := referenceName(checkout.Branch); ref != "" {
		opts.ReferenceName = ref
		opts.SingleBranch = checkout.Depth > 0
	}
	return opts
}

// referenceName accepts either a short branch name or a full reference
func referenceName(branch string) plumbing.ReferenceName {
	switch {
	case branch == "":
		return ""
	case strings.HasPrefix(branch, "refs/"):
		return plumbing.ReferenceName(branch)
	default:
		return plumbing.NewBranchReferenceName(branch)
	}
}
