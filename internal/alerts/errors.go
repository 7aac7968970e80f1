package alerts

import "github.com/jeena-krishna/system-monitor/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Lookup errors
	ErrAlertNotFound = errors.ErrAlertNotFound

	// Persistence errors
	ErrPersistFailed = errors.ErrorCode("alerts_persist_failed")
	ErrRestoreFailed = errors.ErrorCode("alerts_restore_failed")
)
