//go:build windows

package store

import (
	"golang.org/x/sys/windows"
)

// tryLock attempts a non-blocking exclusive lock on the lock file.
// LockFileEx with LOCKFILE_FAIL_IMMEDIATELY locks one byte at offset 0.
func (l *writeLocker) tryLock() error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(
		windows.Handle(l.lockFile.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		1,
		0,
		ol,
	)
}

// unlock releases the exclusive lock.
func (l *writeLocker) unlock() {
	if l.lockFile == nil {
		return
	}
	ol := new(windows.Overlapped)
	windows.UnlockFileEx(
		windows.Handle(l.lockFile.Fd()),
		0,
		1,
		0,
		ol,
	)
}

// isProcessAlive reports whether a process with the given PID is running.
func isProcessAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	// STILL_ACTIVE (259)
	return exitCode == 259
}
