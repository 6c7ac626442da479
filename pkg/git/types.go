// pkg/git/types.go

package git

// RepositorySource describes one repository to keep in sync.
type RepositorySource struct {
	Name      string
	RemoteURL string
	LocalPath string
	Branch    string // empty: remote default on clone, current branch on update
}

// SyncResult is the outcome of a single CloneOrUpdate call.
type SyncResult struct {
	Success       bool
	WasUpdated    bool
	CommitHash    string
	CommitMessage string
	ErrorMessage  string
}

// ShortHash returns the first 7 characters of the commit hash.
func (r SyncResult) ShortHash() string {
	if len(r.CommitHash) > 7 {
		return r.CommitHash[:7]
	}
	return r.CommitHash
}

func failed(err error) SyncResult {
	return SyncResult{ErrorMessage: err.Error()}
}
