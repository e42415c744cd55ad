package infra

import (
	"os"
	"path/filepath"

	"github.com/PleasePrompto/ductor/internal/derrors"
)

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by a rename. A crash mid-write leaves either the
// old file intact or the new file fully written.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return derrors.Wrap(derrors.KindInfra, "atomic-write", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return derrors.Wrap(derrors.KindInfra, "atomic-write", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return derrors.Wrap(derrors.KindInfra, "atomic-write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return derrors.Wrap(derrors.KindInfra, "atomic-write", err)
	}
	if err := tmp.Close(); err != nil {
		return derrors.Wrap(derrors.KindInfra, "atomic-write", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return derrors.Wrap(derrors.KindInfra, "atomic-write", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return derrors.Wrap(derrors.KindInfra, "atomic-write", err)
	}
	return nil
}
