package querycache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Class is the retry-relevant category of a failure.
type Class uint8

const (
	// ClassTransient failures (network, timeouts, 5xx) are retried.
	ClassTransient Class = iota
	// ClassAuthFailure means the data source rejected the session. It is
	// never retried and starts a session-expired episode.
	ClassAuthFailure
	// ClassPermanent failures (validation, not found) are never retried.
	ClassPermanent
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassAuthFailure:
		return "auth_failure"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ErrUnauthenticated can be returned (or wrapped) by a fetcher to signal an
// expired or missing session without an HTTP status.
var ErrUnauthenticated = errors.New("querycache: unauthenticated")

// ErrorClassifier maps a fetcher error to a Class.
type ErrorClassifier interface {
	Classify(err error) Class
}

// ClassifierFunc adapts a plain function to ErrorClassifier.
type ClassifierFunc func(error) Class

func (f ClassifierFunc) Classify(err error) Class { return f(err) }

// StatusError carries the HTTP status of a failed fetch so it can be
// classified without looking at the message.
type StatusError struct {
	Code   int
	Status string // optional reason phrase
	Err    error  // optional cause
}

func (e *StatusError) StatusCode() int { return e.Code }

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("status %d %s: %v", e.Code, status, e.Err)
	}
	return fmt.Sprintf("status %d %s", e.Code, status)
}

func (e *StatusError) Unwrap() error { return e.Err }

type classifiedError struct {
	class Class
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Unauthenticated marks err as an auth failure regardless of its shape.
func Unauthenticated(err error) error { return mark(ClassAuthFailure, err) }

// Permanent marks err as not retryable.
func Permanent(err error) error { return mark(ClassPermanent, err) }

// Transient marks err as retryable, overriding status codes and heuristics.
func Transient(err error) error { return mark(ClassTransient, err) }

func mark(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: class, err: err}
}

// DefaultClassifier looks for evidence in this order: explicit marks,
// ErrUnauthenticated, a StatusCode() int anywhere in the chain,
// context.Canceled, and finally the error message. Anything left is
// transient.
type DefaultClassifier struct {
	// NoHeuristics turns off message matching ("401", "authentication").
	NoHeuristics bool
}

type statusCoder interface {
	StatusCode() int
}

func (d DefaultClassifier) Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}
	var marked *classifiedError
	if errors.As(err, &marked) {
		return marked.class
	}
	if errors.Is(err, ErrUnauthenticated) {
		return ClassAuthFailure
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return ClassifyStatus(sc.StatusCode())
	}
	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	if !d.NoHeuristics && looksUnauthenticated(err.Error()) {
		return ClassAuthFailure
	}
	return ClassTransient
}

// ClassifyStatus maps an HTTP status code to a Class.
func ClassifyStatus(code int) Class {
	switch {
	case code == http.StatusUnauthorized:
		return ClassAuthFailure
	case code == http.StatusRequestTimeout,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests:
		return ClassTransient
	case code >= 400 && code < 500:
		return ClassPermanent
	default:
		return ClassTransient
	}
}

// best effort only: a transient error that happens to mention 401 is misread.
func looksUnauthenticated(msg string) bool {
	return strings.Contains(msg, "401") ||
		strings.Contains(strings.ToLower(msg), "authentication")
}
