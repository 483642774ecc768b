//go:build !windows

package filesystem

import (
	"errors"
	"syscall"
)

func isNotEmptyErr(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY)
}
