//go:build !unix

package lock

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("file locks are only supported on unix; use the mysql lock backend")

func tryFlock(f *os.File) (bool, error) {
	return false, errUnsupported
}

func unflock(f *os.File) {}
