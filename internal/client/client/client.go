package client

import (
	"context"
)

// Client is the marketplace identity API as seen by the app. Every method
// returns an *APIError on failure.
type Client interface {
	Signup(ctx context.Context, req SignupRequest) error
	VerifyOTP(ctx context.Context, email, code string) error
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, username, password string) (LoginResult, error)
	// UserInfo fetches the profile. A non-empty token is sent as given;
	// an empty one lets the request be signed from the token source. Only
	// the latter raises the unauthorized signal on 401: a rejected
	// explicit token is reported to the caller alone.
	UserInfo(ctx context.Context, token string) (UserProfile, error)
	WorkerSignup(ctx context.Context, req WorkerSignupRequest) (WorkerSignupResult, error)
	WorkerLogin(ctx context.Context, email string) (WorkerLoginResult, error)
	Ping(ctx context.Context) error
}
