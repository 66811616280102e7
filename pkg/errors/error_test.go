package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	. "alchemy/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{CompetitionNotFound, "Competition not found"},
		{DescriptorOutOfOrder, "Competition boundaries are out of order"},
		{ErrorCode(1), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, http.StatusOK},
		{InvalidParams, http.StatusBadRequest},
		{ValidationFailed, http.StatusBadRequest},
		{InvalidDescriptor, http.StatusBadRequest},
		{TokenInvalid, http.StatusUnauthorized},
		{CompetitionNotFound, http.StatusNotFound},
		{ArchiveNotFound, http.StatusNotFound},
		{ServiceUnavailable, http.StatusServiceUnavailable},
		{EventPublishFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CompetitionNotFound, "competition %s not found", "0xabc")
	if err.Error() != "competition 0xabc not found" {
		t.Errorf("Error() = %v", err.Error())
	}
	if err.Stack == "" {
		t.Error("expected stack to be captured")
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, DatabaseError)

	if wrappedErr.Code != DatabaseError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, DatabaseError)
	}
	if !errors.Is(wrappedErr, originalErr) {
		t.Error("wrapped error should match original")
	}
	if Wrap(nil, DatabaseError) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrapRecodesCustomError(t *testing.T) {
	inner := New(CacheError)
	outer := fmt.Errorf("load: %w", inner)

	got := Wrap(outer, ServiceUnavailable)
	if got != inner || got.Code != ServiceUnavailable {
		t.Fatalf("expected inner error to be re-coded, got %+v", got)
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(CompetitionNotFound), want: CompetitionNotFound},
		{name: "wrapped custom error", err: fmt.Errorf("ctx: %w", New(ArchiveNotFound)), want: ArchiveNotFound},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(CompetitionNotFound)

	if !Is(err, CompetitionNotFound) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, DatabaseError) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(nil, CompetitionNotFound) {
		t.Error("Is() should return false for nil error")
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("end_time", "before_voting_start")
	if err.Code != ValidationFailed {
		t.Error("ValidationError should use ValidationFailed code")
	}
	if err.Details["field"] != "end_time" || err.Details["reason"] != "before_voting_start" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestGetErrorWrapsForeign(t *testing.T) {
	got := GetError(errors.New("boom"))
	if got.Code != InternalServerError || got.Error() != "boom" {
		t.Fatalf("unexpected error: %+v", got)
	}
}
