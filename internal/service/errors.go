package service

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable failure classification surfaced to callers
type ErrorKind string

const (
	// KindInvalidRequest: caller error, rejected before any side effect
	KindInvalidRequest ErrorKind = "INVALID_REQUEST"
	// KindIntegrityMismatch: declared hash does not match the payload, or
	// retrieved content does not match the recorded hash
	KindIntegrityMismatch ErrorKind = "INTEGRITY_MISMATCH"
	// KindPaymentNotConfirmed: settlement wait timed out; the pending record
	// is kept for reconciliation and the caller may retry
	KindPaymentNotConfirmed ErrorKind = "PAYMENT_NOT_CONFIRMED"
	// KindTransferRedeemed: the settlement transfer already paid for a
	// different stored record
	KindTransferRedeemed ErrorKind = "TRANSFER_ALREADY_REDEEMED"
	// KindStorageWriteFailed: the storage network rejected the write; the
	// pending record is kept and the whole ingestion is safe to retry
	KindStorageWriteFailed ErrorKind = "STORAGE_WRITE_FAILED"
	// KindNotFound: no record exists for the requested identifier
	KindNotFound ErrorKind = "NOT_FOUND"
)

// Error is a typed service failure carrying a stable kind plus a
// human-readable message
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind extracts the error kind from err, or "" if err is not a service error
func Kind(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ""
}

func invalidRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func integrityMismatch(format string, args ...interface{}) *Error {
	return &Error{Kind: KindIntegrityMismatch, Message: fmt.Sprintf(format, args...)}
}

func paymentNotConfirmed(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPaymentNotConfirmed, Message: fmt.Sprintf(format, args...)}
}

func transferRedeemed(transferRef string) *Error {
	return &Error{
		Kind:    KindTransferRedeemed,
		Message: fmt.Sprintf("transfer %s already redeemed by another stored record", transferRef),
	}
}

func storageWriteFailed(err error) *Error {
	return &Error{Kind: KindStorageWriteFailed, Message: "storage write failed", Err: err}
}

func notFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}
