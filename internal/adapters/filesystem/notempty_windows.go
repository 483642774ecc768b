//go:build windows

package filesystem

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isNotEmptyErr(err error) bool {
	return errors.Is(err, windows.ERROR_DIR_NOT_EMPTY)
}
