package usecase

import (
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
)

//nolint:gochecknoglobals // overridden in tests to exercise case-insensitive platforms.
var foldPathCase = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// IsFilesystemRoot reports whether path names a filesystem root such as "/",
// "C:\" or a bare drive "C:". Relative paths are resolved against the working
// directory first.
func IsFilesystemRoot(path string) bool {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return false
	}
	if isBareDrive(clean) {
		return true
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return false
	}
	abs = filepath.Clean(abs)
	volume := filepath.VolumeName(abs)
	rest := strings.TrimRight(strings.TrimPrefix(abs, volume), `/\`)
	if rest == "" {
		return true
	}
	return filepath.Dir(abs) == abs
}

// isBareDrive matches "C:", "C:\" and "C:/" with any number of trailing separators.
func isBareDrive(path string) bool {
	if !hasDrivePrefix(path) {
		return false
	}
	return strings.TrimRight(path[2:], `/\`) == ""
}

func hasDrivePrefix(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// NormalizeMemberName converts an archive member name to forward slashes.
func NormalizeMemberName(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

// IsSafeMember reports whether extracting memberName under targetDir stays
// inside targetDir.
func IsSafeMember(targetDir, memberName string) bool {
	_, ok := checkMember(targetDir, memberName)
	return ok
}

// checkMember is IsSafeMember with a reason for the refusal.
func checkMember(targetDir, memberName string) (string, bool) {
	if memberName == "" {
		return "empty member name", false
	}
	if strings.HasPrefix(memberName, "/") || strings.HasPrefix(memberName, `\`) {
		return "absolute path", false
	}
	if hasDrivePrefix(memberName) {
		return "drive-qualified path", false
	}
	base, err := filepath.Abs(targetDir)
	if err != nil {
		return "cannot resolve target directory", false
	}
	base = filepath.Clean(base)
	resolved := filepath.Join(base, filepath.FromSlash(NormalizeMemberName(memberName)))
	if !withinDir(comparablePath(base), comparablePath(resolved)) {
		return "resolves outside the target directory", false
	}
	return "", true
}

func comparablePath(p string) string {
	if !foldPathCase {
		return p
	}
	return cases.Fold().String(p)
}

func withinDir(base, candidate string) bool {
	if candidate == base {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(candidate, prefix)
}
