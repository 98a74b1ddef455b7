package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/services"
)

type stubPasswordService struct {
	sendErr   error
	verifyErr error
	resetErr  error
	lastEmail string
}

func (s *stubPasswordService) SendOTP(_ context.Context, email string) error {
	s.lastEmail = email
	return s.sendErr
}

func (s *stubPasswordService) VerifyOTP(_ context.Context, email, _ string) error {
	s.lastEmail = email
	return s.verifyErr
}

func (s *stubPasswordService) ResetPassword(_ context.Context, email, _, _ string) error {
	s.lastEmail = email
	return s.resetErr
}

func newPasswordApp(service *stubPasswordService) *fiber.App {
	handler := NewPasswordHandler(service)
	app := newActorApp("", "")
	app.Post("/api/forgot-password/send-otp", handler.SendOTP)
	app.Post("/api/forgot-password/verify-otp", handler.VerifyOTP)
	app.Post("/api/forgot-password/reset-password", handler.ResetPassword)
	return app
}

func TestSendOTPAlwaysSucceeds(t *testing.T) {
	service := &stubPasswordService{}
	app := newPasswordApp(service)

	resp, body := doRequest(t, app, http.MethodPost, "/api/forgot-password/send-otp", `{"email":"ghost@example.com"}`)
	expectEnvelope(t, resp, body, http.StatusOK, true)
	if service.lastEmail != "ghost@example.com" {
		t.Fatalf("expected email forwarded, got %q", service.lastEmail)
	}
}

func TestVerifyOTPReportsRemainingAttempts(t *testing.T) {
	app := newPasswordApp(&stubPasswordService{verifyErr: &services.OTPMismatchError{Remaining: 3}})

	resp, body := doRequest(t, app, http.MethodPost, "/api/forgot-password/verify-otp", `{"email":"a@example.com","otp":"000000"}`)
	expectEnvelope(t, resp, body, http.StatusBadRequest, false)
	if body["remaining_attempts"] != float64(3) {
		t.Fatalf("expected remaining_attempts 3, got %v", body)
	}
}

func TestVerifyOTPStatusCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrOTPAttemptsExceeded, http.StatusTooManyRequests},
		{services.ErrOTPExpired, http.StatusGone},
		{services.ErrOTPInvalid, http.StatusBadRequest},
	}
	for _, tc := range cases {
		app := newPasswordApp(&stubPasswordService{verifyErr: tc.err})
		resp, body := doRequest(t, app, http.MethodPost, "/api/forgot-password/verify-otp", `{"email":"a@example.com","otp":"123456"}`)
		expectEnvelope(t, resp, body, tc.status, false)
	}
}

func TestVerifyOTPRejectsMalformedCode(t *testing.T) {
	app := newPasswordApp(&stubPasswordService{})

	resp, body := doRequest(t, app, http.MethodPost, "/api/forgot-password/verify-otp", `{"email":"a@example.com","otp":"12ab"}`)
	expectEnvelope(t, resp, body, http.StatusBadRequest, false)
}

func TestResetPasswordSucceeds(t *testing.T) {
	app := newPasswordApp(&stubPasswordService{})

	resp, body := doRequest(t, app, http.MethodPost, "/api/forgot-password/reset-password",
		`{"email":"a@example.com","otp":"123456","new_password":"new-password"}`)
	expectEnvelope(t, resp, body, http.StatusOK, true)
}
