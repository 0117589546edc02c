package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrBoardNotFound  = errors.New("board not found")
	ErrColumnNotFound = errors.New("column not found")
	ErrNoColumns      = errors.New("board requires at least one column")
	ErrPanelNotLoaded = errors.New("panel metadata not loaded")
)
