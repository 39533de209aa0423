package domain

import "errors"

var (
	// ErrFormat reports a malformed message: short read, bad label, looping pointer or oversized name.
	ErrFormat = errors.New("malformed dns message")
	// ErrProtocolViolation reports a peer that broke the protocol, e.g. an upstream reply without QR set.
	ErrProtocolViolation = errors.New("dns protocol violation")
	// ErrCacheInsert reports an answer that could not be stored or read back from the cache.
	ErrCacheInsert = errors.New("cache insert failed")
	// ErrUpstreamTimeout reports an upstream exchange that hit its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrQuestionCount reports a message that does not carry exactly one question.
	ErrQuestionCount = errors.New("unsupported question count")
	// ErrNotQuery reports an inbound message that is a response rather than a query.
	ErrNotQuery = errors.New("message is not a query")
)
