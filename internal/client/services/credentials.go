// Package services contains application services for the ExpertEase client.
// This file defines the credential service: the identity operations for
// users and workers plus the calls they depend on, each returning a typed
// failure from package client.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/logging"
)

// CredentialService defines the identity operations used by the session
// controller and the OTP flow.
//
// Contract:
//   - Signup: register a user account; the server mails an OTP as a side effect.
//   - VerifyOTP / ResendOTP: confirm or re-request that OTP.
//   - LoginUser: exchange username/password for a token and user id.
//   - FetchUserProfile: resolve a token into a profile.
//   - WorkerSignup: register a service worker pending approval.
//   - LoginWorker: passwordless worker login by registered email.
//
// Expected business failures are returned as *client.APIError whose kind is
// one of the client.Err* sentinels; nothing here panics or retries.
type CredentialService interface {
	Signup(ctx context.Context, req client.SignupRequest) error
	VerifyOTP(ctx context.Context, email, code string) error
	ResendOTP(ctx context.Context, email string) error
	LoginUser(ctx context.Context, username, password string) (client.LoginResult, error)
	FetchUserProfile(ctx context.Context, token string) (client.UserProfile, error)
	WorkerSignup(ctx context.Context, req client.WorkerSignupRequest) (client.WorkerSignupResult, error)
	LoginWorker(ctx context.Context, email string) (client.WorkerLoginResult, error)
}

type credentialService struct {
	api    client.Client
	logger logging.Logger
}

// NewCredentialService builds the stateless façade over api.
func NewCredentialService(api client.Client, logger logging.Logger) CredentialService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &credentialService{api: api, logger: logger.With("component", "credentials")}
}

func (s *credentialService) Signup(ctx context.Context, req client.SignupRequest) error {
	if err := validateSignup(req); err != nil {
		return err
	}
	err := s.api.Signup(ctx, req)
	if err == nil {
		s.logger.Info(ctx, "signup accepted", "username", req.Username, "email", req.Email)
		return nil
	}
	if errors.Is(err, client.ErrValidation) && isDuplicate(client.MessageOf(err)) {
		err = client.Reclassify(err, client.ErrConflict)
	}
	s.logger.Warn(ctx, "signup failed", "username", req.Username, "error", err)
	return err
}

func (s *credentialService) VerifyOTP(ctx context.Context, email, code string) error {
	err := s.api.VerifyOTP(ctx, email, code)
	if err == nil {
		return nil
	}
	if client.StatusOf(err) == http.StatusBadRequest {
		msg := strings.ToLower(client.MessageOf(err))
		switch {
		case strings.Contains(msg, "expired"):
			err = client.Reclassify(err, client.ErrExpired)
		case strings.Contains(msg, "not found"):
			err = client.Reclassify(err, client.ErrNotFound)
		default:
			err = client.Reclassify(err, client.ErrInvalidCode)
		}
	}
	s.logger.Warn(ctx, "otp verification failed", "email", email, "error", err)
	return err
}

func (s *credentialService) ResendOTP(ctx context.Context, email string) error {
	err := s.api.ResendOTP(ctx, email)
	if err != nil {
		s.logger.Warn(ctx, "otp resend failed", "email", email, "error", err)
	}
	return err
}

func (s *credentialService) LoginUser(ctx context.Context, username, password string) (client.LoginResult, error) {
	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrValidation) {
			err = client.Reclassify(err, client.ErrInvalidCredentials)
		}
		return client.LoginResult{}, err
	}
	if res.Token == "" || res.UserID == "" {
		return client.LoginResult{}, &client.APIError{Kind: client.ErrUnexpected, Message: client.MessageUnexpected}
	}
	return res, nil
}

func (s *credentialService) FetchUserProfile(ctx context.Context, token string) (client.UserProfile, error) {
	if token == "" {
		return client.UserProfile{}, &client.APIError{Kind: client.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	return s.api.UserInfo(ctx, token)
}

func (s *credentialService) WorkerSignup(ctx context.Context, req client.WorkerSignupRequest) (client.WorkerSignupResult, error) {
	req.Service = strings.ToLower(strings.TrimSpace(req.Service))
	if req.Service == "" {
		req.Service = client.ServiceHealthcare
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateWorkerSignup(req); err != nil {
		return client.WorkerSignupResult{}, err
	}
	res, err := s.api.WorkerSignup(ctx, req)
	if err != nil {
		if errors.Is(err, client.ErrValidation) && isDuplicate(client.MessageOf(err)) {
			err = client.Reclassify(err, client.ErrConflict)
		}
		s.logger.Warn(ctx, "worker signup failed", "email", req.Email, "service", req.Service, "error", err)
		return client.WorkerSignupResult{}, err
	}
	if res.WorkerID == "" {
		return client.WorkerSignupResult{}, &client.APIError{Kind: client.ErrUnexpected, Message: client.MessageUnexpected}
	}
	s.logger.Info(ctx, "worker signup accepted", "worker_id", res.WorkerID, "service", req.Service)
	return res, nil
}

func (s *credentialService) LoginWorker(ctx context.Context, email string) (client.WorkerLoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return client.WorkerLoginResult{}, &client.APIError{Kind: client.ErrValidation, Message: "Email is required"}
	}
	res, err := s.api.WorkerLogin(ctx, email)
	if err != nil {
		return client.WorkerLoginResult{}, err
	}
	if res.WorkerID == "" {
		return client.WorkerLoginResult{}, &client.APIError{Kind: client.ErrUnexpected, Message: client.MessageUnexpected}
	}
	return res, nil
}

func validateSignup(req client.SignupRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "",
		strings.TrimSpace(req.Username) == "",
		strings.TrimSpace(req.Email) == "",
		req.Password == "":
		return &client.APIError{Kind: client.ErrValidation, Message: "All fields are required"}
	case !strings.Contains(req.Email, "@"):
		return &client.APIError{Kind: client.ErrValidation, Message: "Please enter a valid email address"}
	}
	return nil
}

func validateWorkerSignup(req client.WorkerSignupRequest) error {
	missing := strings.TrimSpace(req.FullName) == "" || req.Email == "" || strings.TrimSpace(req.Phone) == ""
	if req.Service == client.ServiceHealthcare {
		missing = missing || strings.TrimSpace(req.Specialization) == "" || strings.TrimSpace(req.Experience) == ""
	}
	switch {
	case missing:
		return &client.APIError{Kind: client.ErrValidation, Message: "Please fill all required fields"}
	case !strings.Contains(req.Email, "@"):
		return &client.APIError{Kind: client.ErrValidation, Message: "Please enter a valid email address"}
	}
	return nil
}

func isDuplicate(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "exists") || strings.Contains(msg, "already")
}
