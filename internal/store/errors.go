package store

import "github.com/jeena-krishna/system-monitor/internal/errors"

const (
	// Configuration errors
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")
	ErrInvalidRange  = errors.ErrorCode("store_invalid_range")

	// Schema errors
	ErrSchemaInitFailed = errors.ErrorCode("store_schema_init_failed")

	// Storage errors
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageAccess = errors.ErrorCode("store_access_failed")
	ErrStorageClose  = errors.ErrShutdownFailed
	ErrEncodeFailed  = errors.ErrorCode("store_encode_failed")
	ErrDecodeFailed  = errors.ErrorCode("store_decode_failed")

	// Invariant errors
	ErrOutOfOrder = errors.ErrOutOfOrder
)
