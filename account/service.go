// Package account exposes the user-facing auth endpoints: login, logout,
// and the password recovery flow (forgot-password, verify-otp,
// reset-password).
package account

import (
	"context"
	"errors"

	"github.com/TechEagle-Innovations/skyops-go/api"
	"github.com/TechEagle-Innovations/skyops-go/apierror"
	"github.com/TechEagle-Innovations/skyops-go/auth"
)

// Endpoint paths under the API base URL.
const (
	LoginPath          = "/user/login"
	LogoutPath         = "/user/logout"
	ForgotPasswordPath = "/user/forgot-password"
	VerifyOTPPath      = "/user/verify-otp"
	ResetPasswordPath  = "/user/reset-password"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MessageResponse is the body returned by the recovery-flow endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// Service issues account requests through the shared API client.
type Service struct {
	client *api.Client
}

// NewService creates an account Service on top of client.
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Login exchanges credentials for a token pair and profile. A 401 is
// reported as invalid credentials rather than an expired session: there is
// no session yet to expire.
func (s *Service) Login(ctx context.Context, creds Credentials) (auth.AuthResponse, error) {
	var resp auth.AuthResponse
	if err := s.client.Post(ctx, LoginPath, creds, &resp); err != nil {
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) && apiErr.Kind == apierror.KindUnauthorized {
			return auth.AuthResponse{}, &apierror.Error{
				Kind:    apierror.KindValidation,
				Message: apierror.MsgInvalidCredentials,
				Code:    apiErr.Code,
				Cause:   err,
			}
		}
		return auth.AuthResponse{}, err
	}
	return resp, nil
}

// Logout invalidates the session server-side.
func (s *Service) Logout(ctx context.Context) error {
	return s.client.Post(ctx, LogoutPath, nil, nil)
}

// ForgotPassword starts the password recovery flow for email.
func (s *Service) ForgotPassword(ctx context.Context, email string) (MessageResponse, error) {
	var resp MessageResponse
	err := s.client.Post(ctx, ForgotPasswordPath, map[string]string{"email": email}, &resp)
	return resp, err
}

// VerifyOTP checks the one-time code sent to email.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (MessageResponse, error) {
	var resp MessageResponse
	err := s.client.Post(ctx, VerifyOTPPath, map[string]string{
		"email": email,
		"otp":   otp,
	}, &resp)
	return resp, err
}

// ResetPassword completes the recovery flow with a new password.
func (s *Service) ResetPassword(
	ctx context.Context,
	email, otp, newPassword string,
) (MessageResponse, error) {
	var resp MessageResponse
	err := s.client.Post(ctx, ResetPasswordPath, map[string]string{
		"email":       email,
		"otp":         otp,
		"newPassword": newPassword,
	}, &resp)
	return resp, err
}
