package processor

import "errors"

var (
	ErrUnknownTarget = errors.New("processor: unknown target format")
	ErrUnknownEngine = errors.New("processor: unknown render engine")
	ErrInvalidColor  = errors.New("processor: invalid color")
)
