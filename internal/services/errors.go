package services

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrAccountPending      = errors.New("account pending approval")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPInvalid          = errors.New("otp invalid")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrEventFull           = errors.New("event is full")
)

// OTPMismatchError is returned for a wrong reset code that still leaves
// attempts. It matches ErrOTPInvalid under errors.Is.
type OTPMismatchError struct {
	Remaining int
}

func (e *OTPMismatchError) Error() string {
	return fmt.Sprintf("otp invalid, %d attempts remaining", e.Remaining)
}

func (e *OTPMismatchError) Is(target error) bool {
	return target == ErrOTPInvalid
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidInput
	}
	return id, nil
}

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}
