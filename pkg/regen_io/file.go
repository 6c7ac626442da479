/* pkg/regen_io/file.go */

package regen_io

import (
	"io"
	"os"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
)

// CopyFile copies src to dst, creating or truncating dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, xdg.FilePermStandard)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
