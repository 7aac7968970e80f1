package platform

import "github.com/jeena-krishna/system-monitor/internal/errors"

const (
	// Collection errors
	ErrCollectFamily = errors.ErrCollectFamily
	ErrHostInfo      = errors.ErrorCode("platform_host_info_failed")
)
