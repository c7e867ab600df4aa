package service

import (
	"errors"
	"fmt"
)

var (
	errFilename       = errors.New("filename is required")
	errNegativeOffset = errors.New("skip must not be negative")
	errLimitRange     = fmt.Errorf("limit must be between 1 and %d", MaxPageLimit)
	errNoQuery        = errors.New("either query or embedding is required")
	errSessionID      = errors.New("session id is required")
	errHistoryRange   = fmt.Errorf("limit must be between 1 and %d", MaxHistoryLimit)
)
