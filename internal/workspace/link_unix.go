//go:build !windows

package workspace

import "os"

func createDirLink(link, target string) error {
	return os.Symlink(target, link)
}
