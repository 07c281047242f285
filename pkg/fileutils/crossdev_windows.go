package fileutils

import "golang.org/x/sys/windows"

// Renames across drives fail with ERROR_NOT_SAME_DEVICE rather than EXDEV.
var errCrossDevice error = windows.ERROR_NOT_SAME_DEVICE
