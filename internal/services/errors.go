package services

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrTooManyFiles        = errors.New("too many files")
	ErrAlreadyProcessing   = errors.New("document is already processing")
	ErrWorkflowInactive    = errors.New("workflow is inactive")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUpstream            = errors.New("automation engine unavailable")
	ErrConflict            = errors.New("conflict")
)
