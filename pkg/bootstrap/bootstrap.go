package bootstrap

import (
	"context"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/kardianos/osext"
	"github.com/oneconcern/voteview/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultURL is the remote the Solana sources are cloned from
	DefaultURL = "https://github.com/solana-labs/solana.git"

	// DefaultBranch is the release branch checked out
	DefaultBranch = "v1.10"

	// DefaultDir is the name of the checkout directory
	DefaultDir = "solana-v1.10"
)

var (
	// ErrNotDirectory is returned when the target path exists but is not a directory
	ErrNotDirectory = errors.New("target exists and is not a directory")

	// ErrCloneFailed wraps any failure reported by the Cloner
	ErrCloneFailed = errors.New("clone failed")

	// ErrInvalidCheckout is returned when a Checkout is missing its remote or target
	ErrInvalidCheckout = errors.New("invalid checkout")
)

// Outcome tells what Ensure did
type Outcome string

const (
	// Cloned means the remote was cloned into the target
	Cloned Outcome = "cloned"

	// Skipped means the target already existed and nothing was done
	Skipped Outcome = "skipped"
)

// Checkout describes a remote repository and where it lives on disk
type Checkout struct {
	URL    string `json:"url" yaml:"url" mapstructure:"url"`
	Branch string `json:"branch" yaml:"branch" mapstructure:"branch"`
	Dir    string `json:"dir" yaml:"dir" mapstructure:"dir"`
	// BaseDir is the directory Dir is resolved against. When empty, the
	// directory holding the running executable is used.
	BaseDir string `json:"base_dir" yaml:"base_dir" mapstructure:"base_dir"`
	// Depth limits the fetched history. 0 fetches everything.
	Depth int `json:"depth" yaml:"depth" mapstructure:"depth"`
}

// DefaultCheckout returns the Solana v1.10 checkout
func DefaultCheckout() Checkout {
	return Checkout{
		URL:    DefaultURL,
		Branch: DefaultBranch,
		Dir:    DefaultDir,
	}
}

// Target resolves the checkout directory
func (c Checkout) Target() (string, error) {
	base := c.BaseDir
	if base == "" {
		var err error
		base, err = ExecutableDir()
		if err != nil {
			return "", err
		}
	}
	if filepath.IsAbs(c.Dir) {
		return filepath.Clean(c.Dir), nil
	}
	return filepath.Join(base, c.Dir), nil
}

func (c Checkout) validate() error {
	if c.URL == "" {
		return ErrInvalidCheckout.Wrapf(nil, "missing remote URL")
	}
	if c.Dir == "" {
		return ErrInvalidCheckout.Wrapf(nil, "missing target directory")
	}
	return nil
}

// Result reports what Ensure did
type Result struct {
	Target  string
	Outcome Outcome
	// Size is the number of bytes under Target after a clone. It is 0 when skipped.
	Size int64
}

// HumanSize renders Size for display
func (r Result) HumanSize() string {
	return units.HumanSize(float64(r.Size))
}

// Ensure clones the checkout unless its target directory already exists.
//
// A target that exists but is not a directory is an error, and the cloner is
// never invoked in that case. When the clone fails, whatever was left at the
// target is removed.
func Ensure(ctx context.Context, checkout Checkout, opts ...Option) (Result, error) {
	e := defaultEnsurer()
	for _, apply := range opts {
		apply(e)
	}

	if err := checkout.validate(); err != nil {
		return Result{}, err
	}
	target, err := checkout.Target()
	if err != nil {
		return Result{}, err
	}
	result := Result{Target: target}

	exists, err := e.present(target)
	if err != nil {
		return result, err
	}
	if exists {
		e.l.Info("checkout already present, skipping clone", zap.String("target", target))
		result.Outcome = Skipped
		return result, nil
	}

	e.l.Info("cloning",
		zap.String("url", checkout.URL),
		zap.String("branch", checkout.Branch),
		zap.String("target", target),
		zap.Int("depth", checkout.Depth),
		zap.String("cloner", e.cloner.String()),
	)
	if err = e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return result, err
	}
	if err = e.cloner.Clone(ctx, checkout, target); err != nil {
		if rmErr := e.fs.RemoveAll(target); rmErr != nil {
			e.l.Warn("could not remove partial checkout", zap.String("target", target), zap.Error(rmErr))
		}
		return result, ErrCloneFailed.Wrapf(err, "%s", checkout.URL)
	}

	result.Outcome = Cloned
	result.Size, err = e.diskUsage(target)
	if err != nil {
		e.l.Warn("could not measure checkout", zap.String("target", target), zap.Error(err))
	}
	e.l.Info("clone complete", zap.String("target", target), zap.String("size", result.HumanSize()))
	return result, nil
}

type ensurer struct {
	fs     afero.Fs
	cloner Cloner
	l      *zap.Logger
}

func defaultEnsurer() *ensurer {
	return &ensurer{
		fs:     afero.NewOsFs(),
		cloner: NewGoGitCloner(),
		l:      zap.NewNop(),
	}
}

func (e *ensurer) present(target string) (bool, error) {
	fi, err := e.fs.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !fi.IsDir() {
		return false, ErrNotDirectory.Wrapf(nil, "%s", target)
	}
	return true, nil
}

func (e *ensurer) diskUsage(target string) (int64, error) {
	var size int64
	err := afero.Walk(e.fs, target, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// ExecutableDir returns the directory holding the running binary, with symlinks resolved
func ExecutableDir() (string, error) {
	exe, err := osext.Executable()
	if err != nil {
		return "", errors.New("cannot determine current executable").Wrap(err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
