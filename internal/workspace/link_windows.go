//go:build windows

package workspace

import (
	"fmt"
	"os"
	"os/exec"
)

// createDirLink tries a native directory symlink (needs Developer Mode
// or admin), then falls back to an NTFS junction which does not.
func createDirLink(link, target string) error {
	if err := os.Symlink(target, link); err == nil {
		return nil
	}
	out, err := exec.Command("cmd", "/c", "mklink", "/J", link, target).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mklink /J failed: %v: %s", err, out)
	}
	return nil
}
