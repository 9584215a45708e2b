//go:build !unix && !windows

package platform

import (
	"fmt"
	"runtime"
)

func lockInstance(_, _ string) (InstanceLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrLockUnsupported, runtime.GOOS)
}
