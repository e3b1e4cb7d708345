package registry

import (
	"errors"
	"testing"
)

type transientErr struct{ temporary bool }

func (e transientErr) Error() string   { return "transient" }
func (e transientErr) Temporary() bool { return e.temporary }

func TestLogAppendErrorIsTemporaryByDefault(t *testing.T) {
	err := &LogAppendError{Stream: "orders", Err: errors.New("produce timeout")}
	if !err.Temporary() {
		t.Fatalf("append failures must be retryable by default")
	}
	err = &LogAppendError{Stream: "orders", Err: transientErr{temporary: false}}
	if err.Temporary() {
		t.Fatalf("cause said permanent")
	}
}

func TestProvisioningErrorIsPermanentByDefault(t *testing.T) {
	err := &ProvisioningError{Stream: "orders", Placement: "vpc-a", Err: errors.New("invalid replication factor")}
	if err.Temporary() {
		t.Fatalf("provisioning failures must be permanent by default")
	}
	err = &ProvisioningError{Stream: "orders", Placement: "vpc-a", Err: transientErr{temporary: true}}
	if !err.Temporary() {
		t.Fatalf("cause said transient")
	}
}
