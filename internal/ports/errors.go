// Package ports defines the narrow external-collaborator contracts of
// spec.md §6 (Market Data, Broker, Notifier) and the error taxonomy of §7.
package ports

import "errors"

// Transient errors: recoverable by retry or by neutral-contribution fallback.
var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrRateLimited     = errors.New("rate limited")
	ErrTimeout         = errors.New("timeout")
)

// Broker-domain errors: recoverable by skipping or waiting.
var (
	ErrRejected               = errors.New("rejected")
	ErrInsufficientBuyingPower = errors.New("insufficient buying power")
	ErrMarketClosed           = errors.New("market closed")
)

// ErrInvariant is a programmer-error-class violation (e.g. stop >= entry).
// It terminates the current evaluation with action=skip; it is never silently
// suppressed (spec §7).
var ErrInvariant = errors.New("invariant violated")

// ErrFatal is unrecoverable: journal write failure, clock clearly wrong.
// It triggers a graceful shutdown (spec §7).
var ErrFatal = errors.New("fatal")
