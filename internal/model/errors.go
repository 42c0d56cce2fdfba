package model

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when there is nothing to summarize.
	ErrEmptyInput = errors.New("empty input")
	// ErrInsufficientData is the statistics-facing name of ErrEmptyInput.
	ErrInsufficientData = ErrEmptyInput

	// ErrInvalidRange covers out-of-bounds pages and unknown sort keys.
	ErrInvalidRange = errors.New("invalid range")

	// ErrAlreadyRunning rejects a second concurrent daily run.
	ErrAlreadyRunning = errors.New("daily run already in progress")

	// ErrSettlement is the parent of every settlement failure.
	ErrSettlement         = errors.New("settlement error")
	ErrAlreadySettled     = fmt.Errorf("%w: outcome already settled", ErrSettlement)
	ErrPredictionNotFound = fmt.Errorf("%w: no matching prediction", ErrSettlement)
)
