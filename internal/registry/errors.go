package registry

import (
	"errors"
	"fmt"
)

// InvalidDefinitionError reports a malformed stream definition. The request
// must be fixed by the caller; retrying as-is cannot succeed.
type InvalidDefinitionError struct {
	Stream string
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("invalid stream definition: %s", e.Reason)
	}
	return fmt.Sprintf("invalid stream definition %q: %s", e.Stream, e.Reason)
}

// ImmutableFieldError reports an upsert that tried to change a structural
// property fixed at creation time.
type ImmutableFieldError struct {
	Stream    string
	Field     string
	Requested int32
	Current   int32
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("stream %q: %s is immutable: requested %d, current %d",
		e.Stream, e.Field, e.Requested, e.Current)
}

// ProvisioningError wraps a resolver or provisioner failure for one placement.
type ProvisioningError struct {
	Stream    string
	Placement string
	Err       error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision stream %q placement %q: %v", e.Stream, e.Placement, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same request may succeed. It
// delegates to the underlying error; a failure that does not say it is
// transient (an invalid replication factor, say) is treated as permanent.
func (e *ProvisioningError) Temporary() bool {
	var t interface{ Temporary() bool }
	if errors.As(e.Err, &t) {
		return t.Temporary()
	}
	return false
}

// LogAppendError wraps a changelog transport failure.
type LogAppendError struct {
	Stream string
	Err    error
}

func (e *LogAppendError) Error() string {
	return fmt.Sprintf("append change event for stream %q: %v", e.Stream, e.Err)
}

func (e *LogAppendError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the append may succeed. Append failures
// are transport faults and retryable unless the cause says otherwise; the
// provisioned topics are already in place on retry.
func (e *LogAppendError) Temporary() bool {
	var t interface{ Temporary() bool }
	if errors.As(e.Err, &t) {
		return t.Temporary()
	}
	return true
}

// NotFoundError reports a delete of an unknown stream name.
type NotFoundError struct {
	Stream string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stream %q not found", e.Stream)
}
