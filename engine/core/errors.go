package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so the main loop can decide between
// recovering, skipping a frame or shutting down.
type ErrorKind uint8

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindDeviceLost
	ErrorKindSurfaceLost
	ErrorKindSwapchainOutOfDate
	ErrorKindTimeout
	ErrorKindOutOfMemory
	ErrorKindResourceCreation
	ErrorKindShaderCompileFailed
	ErrorKindPipelineCreationFailed
	ErrorKindTextureLoadFailed
	ErrorKindInvalidState
	ErrorKindConfig
)

var (
	ErrUnknown                = errors.New("unknown")
	ErrDeviceLost             = errors.New("device lost")
	ErrSurfaceLost            = errors.New("surface lost")
	ErrSwapchainOutOfDate     = errors.New("swapchain out of date")
	ErrTimeout                = errors.New("wait timed out")
	ErrOutOfMemory            = errors.New("out of memory")
	ErrResourceCreation       = errors.New("resource creation failed")
	ErrShaderCompileFailed    = errors.New("shader compilation failed")
	ErrPipelineCreationFailed = errors.New("pipeline creation failed")
	ErrTextureLoadFailed      = errors.New("texture load failed")
	ErrInvalidState           = errors.New("invalid state")
	ErrConfig                 = errors.New("invalid configuration")
)

var kindSentinels = map[ErrorKind]error{
	ErrorKindUnknown:                ErrUnknown,
	ErrorKindDeviceLost:             ErrDeviceLost,
	ErrorKindSurfaceLost:            ErrSurfaceLost,
	ErrorKindSwapchainOutOfDate:     ErrSwapchainOutOfDate,
	ErrorKindTimeout:                ErrTimeout,
	ErrorKindOutOfMemory:            ErrOutOfMemory,
	ErrorKindResourceCreation:       ErrResourceCreation,
	ErrorKindShaderCompileFailed:    ErrShaderCompileFailed,
	ErrorKindPipelineCreationFailed: ErrPipelineCreationFailed,
	ErrorKindTextureLoadFailed:      ErrTextureLoadFailed,
	ErrorKindInvalidState:           ErrInvalidState,
	ErrorKindConfig:                 ErrConfig,
}

func (k ErrorKind) String() string {
	if s, ok := kindSentinels[k]; ok {
		return s.Error()
	}
	return fmt.Sprintf("error kind %d", uint8(k))
}

// Error carries the kind of a failure, the operation that produced it and the
// underlying cause. errors.Is matches both the cause and the kind sentinel.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Recoverable reports whether the frame loop may keep running after the error.
// Device and surface loss need the device or swapchain rebuilt, which the
// renderer does not do with a fixed extent, so they are not recoverable here.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case ErrorKindSwapchainOutOfDate, ErrorKindTextureLoadFailed:
		return true
	default:
		return false
	}
}

// KindOf returns the kind of the first *Error in the chain, or
// ErrorKindUnknown when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnknown
}

// IsRecoverable is the chain-aware version of (*Error).Recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}
