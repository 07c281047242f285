//go:build !windows

package fileutils

import "syscall"

var errCrossDevice error = syscall.EXDEV
