// pkg/xdg/types.go

package xdg

// AppID is the directory name used under every XDG base directory.
const AppID = "regen"

const (
	DirPermStandard        = 0755
	FilePermOwnerRWX       = 0700
	FilePermStandard       = 0644
	FilePermOwnerReadWrite = 0600
)
