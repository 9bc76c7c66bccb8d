package main

import "errors"

// Sentinel errors for command operations
var (
	ErrScenariosFailed = errors.New("scenarios failed")
	ErrInvalidPhase    = errors.New("phase must be before or after")
)
