package model

import "errors"

var (
	// ErrLeadNotFound is returned by lead stores for an unknown id or client
	ErrLeadNotFound = errors.New("lead not found")
	// ErrAgentNotFound is returned by agent stores for an unknown id
	ErrAgentNotFound = errors.New("agent not found")
)
