// pkg/git/sync.go
//
// Clone-or-update for a single repository using go-git. Every failure is
// folded into SyncResult; callers never see an error value or a panic.

package git

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	remoteName = "origin"
	// maxBehindWalk caps the commit walk used for the "behind by" log line.
	maxBehindWalk = 10000
)

// Syncer clones and fast-forwards repositories.
type Syncer struct {
	// Auth is passed to clone and fetch; nil means anonymous.
	Auth transport.AuthMethod
}

func NewSyncer() *Syncer {
	return &Syncer{}
}

// CloneOrUpdate brings src.LocalPath to the tip of origin/<branch>.
func (s *Syncer) CloneOrUpdate(ctx context.Context, src RepositorySource) (res SyncResult) {
	ctx, span := telemetry.Start(ctx, "git.CloneOrUpdate",
		attribute.String("source", src.Name),
		attribute.String("branch", src.Branch),
	)
	defer span.End()

	log := otelzap.Ctx(ctx).WithOptions(zap.Fields(zap.String("source", src.Name), zap.String("path", src.LocalPath)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic during repository sync", zap.Any("panic", r))
			res = failed(cerr.Newf("panic during sync: %v", r))
		}
		span.SetAttributes(
			attribute.Bool("success", res.Success),
			attribute.Bool("updated", res.WasUpdated),
		)
	}()

	repo, err := gogit.PlainOpen(src.LocalPath)
	switch {
	case errors.Is(err, gogit.ErrRepositoryNotExists):
		log.Info("Repository not found locally, cloning", zap.String("remote", src.RemoteURL))
		return s.clone(ctx, src)
	case err != nil:
		log.Error("Failed to open repository", zap.Error(err))
		return failed(cerr.Wrapf(err, "open %s", src.LocalPath))
	}
	return s.update(ctx, repo, src)
}

func (s *Syncer) clone(ctx context.Context, src RepositorySource) SyncResult {
	log := otelzap.Ctx(ctx)

	if src.RemoteURL == "" {
		return failed(cerr.Newf("%s is not a repository and no remote is configured", src.LocalPath))
	}

	opts := &gogit.CloneOptions{
		URL:        src.RemoteURL,
		RemoteName: remoteName,
		Auth:       s.Auth,
	}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		opts.SingleBranch = false
	}

	repo, err := gogit.PlainCloneContext(ctx, src.LocalPath, false, opts)
	if err != nil {
		log.Error("Clone failed", zap.String("remote", src.RemoteURL), zap.Error(err))
		// leave no half-written checkout behind for the next run to trip on
		if rmErr := removeIfFresh(src.LocalPath); rmErr != nil {
			log.Warn("Failed to clean up partial clone", zap.Error(rmErr))
		}
		return failed(cerr.Wrapf(err, "clone %s", src.RemoteURL))
	}

	head, err := repo.Head()
	if err != nil {
		return failed(cerr.Wrap(err, "resolve HEAD after clone"))
	}
	msg := commitMessage(repo, head.Hash())
	log.Info("Repository cloned",
		zap.String("commit", head.Hash().String()),
		zap.String("branch", head.Name().Short()))

	return SyncResult{
		Success:       true,
		WasUpdated:    true,
		CommitHash:    head.Hash().String(),
		CommitMessage: msg,
	}
}

func (s *Syncer) update(ctx context.Context, repo *gogit.Repository, src RepositorySource) SyncResult {
	log := otelzap.Ctx(ctx)

	if _, err := repo.Remote(remoteName); err != nil {
		log.Error("Remote not configured", zap.String("remote", remoteName), zap.Error(err))
		return failed(cerr.Wrapf(err, "remote %q", remoteName))
	}

	err := repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: remoteName, Auth: s.Auth})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		log.Error("Fetch failed", zap.Error(err))
		return failed(cerr.Wrap(err, "fetch origin"))
	}

	branch := src.Branch
	if branch == "" {
		head, err := repo.Head()
		if err != nil {
			return failed(cerr.Wrap(err, "resolve HEAD"))
		}
		if !head.Name().IsBranch() {
			return failed(cerr.New("HEAD is detached and no branch is configured"))
		}
		branch = head.Name().Short()
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		log.Error("Remote branch not found", zap.String("branch", branch), zap.Error(err))
		return failed(cerr.Wrapf(err, "remote branch %s/%s", remoteName, branch))
	}
	remoteHash := remoteRef.Hash()

	localName := plumbing.NewBranchReferenceName(branch)
	localRef, err := repo.Reference(localName, true)
	createBranch := errors.Is(err, plumbing.ErrReferenceNotFound)
	if err != nil && !createBranch {
		return failed(cerr.Wrapf(err, "local branch %s", branch))
	}

	if !createBranch && localRef.Hash() == remoteHash {
		log.Info("Repository is up to date",
			zap.String("branch", branch),
			zap.String("commit", remoteHash.String()))
		return SyncResult{Success: true, CommitHash: remoteHash.String()}
	}

	if !createBranch {
		behind, found := countBehind(repo, localRef.Hash(), remoteHash)
		if found {
			log.Info("Local branch is behind remote", zap.String("branch", branch), zap.Int("commits", behind))
		} else {
			log.Warn("Local branch has diverged from remote, resetting", zap.String("branch", branch))
		}
	}
	if c, err := repo.CommitObject(remoteHash); err == nil {
		log.Info("Remote tip",
			zap.String("commit", remoteHash.String()),
			zap.String("author", c.Author.Name),
			zap.Time("when", c.Author.When))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return failed(cerr.Wrap(err, "open worktree"))
	}
	if status, err := wt.Status(); err == nil && !status.IsClean() {
		log.Warn("Discarding local changes in worktree", zap.Int("changed_files", len(status)))
	}

	checkout := &gogit.CheckoutOptions{Branch: localName, Force: true}
	if createBranch {
		checkout.Create = true
		checkout.Hash = remoteHash
	}
	if err := wt.Checkout(checkout); err != nil {
		log.Error("Checkout failed", zap.String("branch", branch), zap.Error(err))
		return failed(cerr.Wrapf(err, "checkout %s", branch))
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: remoteHash, Mode: gogit.HardReset}); err != nil {
		log.Error("Hard reset failed", zap.Error(err))
		return failed(cerr.Wrapf(err, "reset to %s", remoteHash))
	}

	log.Info("Repository updated",
		zap.String("branch", branch),
		zap.String("commit", remoteHash.String()))
	return SyncResult{
		Success:       true,
		WasUpdated:    true,
		CommitHash:    remoteHash.String(),
		CommitMessage: commitMessage(repo, remoteHash),
	}
}

// countBehind walks back from remote looking for local.
func countBehind(repo *gogit.Repository, local, remote plumbing.Hash) (int, bool) {
	iter, err := repo.Log(&gogit.LogOptions{From: remote})
	if err != nil {
		return 0, false
	}
	defer iter.Close()

	n, found := 0, false
	_ = iter.ForEach(func(c *object.Commit) error {
		if c.Hash == local {
			found = true
			return storer.ErrStop
		}
		n++
		if n >= maxBehindWalk {
			return storer.ErrStop
		}
		return nil
	})
	return n, found
}

func commitMessage(repo *gogit.Repository, h plumbing.Hash) string {
	c, err := repo.CommitObject(h)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Message)
}

// removeIfFresh deletes path only when it contains nothing but a .git dir,
// i.e. it was created by the failed clone itself.
func removeIfFresh(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.Name() != ".git" {
			return nil
		}
	}
	return os.RemoveAll(path)
}
