package domain

import "errors"

var (
	ErrNotAvailable      = errors.New("memuc is not available")
	ErrAlreadyRunning    = errors.New("launch already running for instance")
	ErrInstanceNotFound  = errors.New("instance not found")
	ErrNotRunning        = errors.New("no launch running for instance")
	ErrUnknownTemplate   = errors.New("not a catalog template")
	ErrTemplateNotFound  = errors.New("template file not found")
	ErrScreenshotFailed  = errors.New("screenshot failed")
	ErrInvalidTemplate   = errors.New("template is not a valid PNG")
	ErrTemplatesDirEmpty = errors.New("templates directory does not exist")
)
