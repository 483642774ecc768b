package usecase

import (
	"context"
	"fmt"
)

const (
	userdataDir = "userdata"
	addonsDir   = "addons"
)

//nolint:gochecknoglobals // fixed layout of an installation, never mutated.
var installationDirs = [...]string{userdataDir, addonsDir}

// ValidateSourceDir checks that dir contains both the userdata and addons
// directories. It emits exactly one progress line with the outcome.
func ValidateSourceDir(ctx context.Context, deps *Dependencies, dir string, progress ProgressFunc) error {
	rep := newReporter(progress, nil)
	return validateSourceDir(ctx, deps.FileSystem, dir, rep)
}

func validateSourceDir(ctx context.Context, fs FileSystemPort, dir string, rep *reporter) error {
	if dir == "" {
		rep.errorf(PhaseValidate, "ERROR: No source directory given")
		return fmt.Errorf("source directory is empty: %w", ErrInvalidSource)
	}
	for _, name := range installationDirs {
		ok, err := isDir(ctx, fs, fs.Join(dir, name))
		if err != nil {
			rep.errorf(PhaseValidate, "ERROR: Cannot read %s in %s: %v", name, dir, err)
			return fmt.Errorf("check %s in %s: %v: %w", name, dir, err, ErrInvalidSource)
		}
		if !ok {
			rep.errorf(PhaseValidate, "ERROR: Invalid Kodi directory - %s folder not found: %s", name, dir)
			return fmt.Errorf("%s folder not found in %s: %w", name, dir, ErrInvalidSource)
		}
	}
	rep.logf(PhaseValidate, "Valid Kodi directory found: %s", dir)
	return nil
}

// HasInstallation reports whether dir already holds both userdata and addons.
func HasInstallation(ctx context.Context, fs FileSystemPort, dir string) (bool, error) {
	for _, name := range installationDirs {
		ok, err := isDir(ctx, fs, fs.Join(dir, name))
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func isDir(ctx context.Context, fs FileSystemPort, path string) (bool, error) {
	info, err := fs.Stat(ctx, path)
	if err != nil {
		if fs.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info != nil && info.IsDir(), nil
}

func pathExists(ctx context.Context, fs FileSystemPort, path string) (bool, error) {
	info, err := fs.Lstat(ctx, path)
	if err != nil {
		if fs.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info != nil, nil
}
