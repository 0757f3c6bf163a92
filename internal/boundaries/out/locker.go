package out

import "context"

// WorkflowLocker serializes backup and restore workflows per instance name.
type WorkflowLocker interface {
	// TryAcquire never blocks; a held lock yields domain.ErrInstanceBusy.
	TryAcquire(ctx context.Context, instance string) (LockGuard, error)
}

// LockGuard releases an acquired workflow lock.
type LockGuard interface {
	Release(ctx context.Context) error
}
