package monitor

import "github.com/jeena-krishna/system-monitor/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Collection errors
	ErrCollectAll = errors.ErrCollectAll

	// Tick errors
	ErrTickFailed = errors.ErrorCode("monitor_tick_failed")
)
