//go:build windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

type mutexLock struct {
	handle windows.Handle
}

// lockInstance uses a session-local named mutex. dir is not needed.
func lockInstance(_ string, name string) (InstanceLock, error) {
	namePtr, err := windows.UTF16PtrFromString(`Local\` + name)
	if err != nil {
		return nil, fmt.Errorf("encode mutex name: %w", err)
	}

	handle, err := windows.CreateMutex(nil, false, namePtr)
	if err != nil {
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			return nil, ErrAlreadyRunning
		}

		return nil, fmt.Errorf("create instance mutex: %w", err)
	}

	return &mutexLock{handle: handle}, nil
}

func (l *mutexLock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("close instance mutex: %w", err)
	}

	return nil
}
