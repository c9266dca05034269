package services

import "errors"

var (
	ErrInvalidDay   = errors.New("day must be formatted as YYYY-MM-DD")
	ErrInvalidName  = errors.New("name may only contain letters, digits, '-' and '_'")
	ErrEmptyInput   = errors.New("input is empty")
	ErrMalformedCSV = errors.New("malformed CSV")
	ErrNoReport     = errors.New("no report yet")
	ErrNoCheckpoint = errors.New("no checkpoint for run")
)
