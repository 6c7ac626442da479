// pkg/git/status.go

package git

import (
	"time"

	cerr "github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
)

// RepositoryState is a read-only snapshot of a checkout.
type RepositoryState struct {
	Branch        string
	CurrentCommit string
	RemoteURL     string
	LastCommit    time.Time
	HasChanges    bool
}

// IsRepository reports whether path opens as a git repository.
func IsRepository(path string) bool {
	_, err := gogit.PlainOpen(path)
	return err == nil
}

// Inspect reads HEAD, origin and worktree state without modifying anything.
func Inspect(path string, withStatus bool) (*RepositoryState, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "open %s", path)
	}

	state := &RepositoryState{}
	if remote, err := repo.Remote(remoteName); err == nil && len(remote.Config().URLs) > 0 {
		state.RemoteURL = remote.Config().URLs[0]
	}

	head, err := repo.Head()
	if err != nil {
		// empty repository: nothing more to read
		return state, nil
	}
	state.CurrentCommit = head.Hash().String()
	if head.Name().IsBranch() {
		state.Branch = head.Name().Short()
	}
	if c, err := repo.CommitObject(head.Hash()); err == nil {
		state.LastCommit = c.Committer.When
	}

	if withStatus {
		wt, err := repo.Worktree()
		if err != nil {
			return state, cerr.Wrap(err, "open worktree")
		}
		st, err := wt.Status()
		if err != nil {
			return state, cerr.Wrap(err, "worktree status")
		}
		state.HasChanges = !st.IsClean()
	}
	return state, nil
}
