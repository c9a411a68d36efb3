package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an opaque identifier. The backend sends numbers; strings are
// accepted too so the client does not care which.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type SignupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the token issuance half of a user login.
type LoginResult struct {
	Token  string `json:"token"`
	UserID ID     `json:"user_id"`
}

// UserProfile is returned by GET /user/info.
type UserProfile struct {
	UserID   ID     `json:"user_id"`
	UserName string `json:"user_name"`
	Username string `json:"username"`
}

// DisplayName prefers the human name and falls back to the login name.
func (p UserProfile) DisplayName() string {
	if p.UserName != "" {
		return p.UserName
	}
	return p.Username
}

// ServiceHealthcare is the service a worker registers under by default.
const ServiceHealthcare = "healthcare"

// WorkerSignupRequest registers a service worker. Specialization and
// Experience are required for healthcare workers.
type WorkerSignupRequest struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Service        string `json:"service,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Experience     string `json:"experience,omitempty"`
	ClinicLocation string `json:"clinic_location,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
	Password       string `json:"password,omitempty"`
}

// WorkerSignupResult is returned by the worker signup endpoints.
type WorkerSignupResult struct {
	WorkerID ID `json:"worker_id"`
}

// WorkerLoginResult is returned by POST /worker/login. Service and
// Specialization are empty when the backend has none on record.
type WorkerLoginResult struct {
	WorkerID       ID     `json:"worker_id"`
	Service        string `json:"service"`
	Specialization string `json:"specialization"`
}

// errorBody covers both error shapes the backend uses.
type errorBody struct {
	Error string `json:"error"`
	Msg   string `json:"msg"`
}
