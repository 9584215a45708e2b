// Package platform holds OS specific helpers for the desktop app.
package platform

import (
	"errors"
	"strings"
)

var (
	// ErrAlreadyRunning means another process holds the instance lock.
	ErrAlreadyRunning = errors.New("another instance is already running")
	// ErrLockUnsupported means the OS has no lock backend.
	ErrLockUnsupported = errors.New("instance lock unsupported")
)

type InstanceLock interface {
	Release() error
}

// LockInstance takes the per-user lock named name. Only one process may hold
// it, so only one app talks to the controller at a time. dir holds the lock
// file where the OS needs one.
func LockInstance(dir, name string) (InstanceLock, error) {
	return lockInstance(dir, lockName(name))
}

func lockName(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_-.")
	if name == "" {
		return "app"
	}

	return name
}
