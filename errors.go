package authcore

import "errors"

var (
	// ErrDuplicateIdentity is an exported constant or variable used by the authentication engine.
	ErrDuplicateIdentity = errors.New("username or email already registered")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSecondFactor is an exported constant or variable used by the authentication engine.
	ErrInvalidSecondFactor = errors.New("invalid second factor code")
	// ErrSessionExpiredOrUnknown is an exported constant or variable used by the authentication engine.
	ErrSessionExpiredOrUnknown = errors.New("session expired or unknown")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidRole is an exported constant or variable used by the authentication engine.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidInput is an exported constant or variable used by the authentication engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTOTPNotConfigured is an exported constant or variable used by the authentication engine.
	ErrTOTPNotConfigured = errors.New("second factor not configured for account")
	// ErrSecondFactorAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrSecondFactorAttemptsExceeded = errors.New("second factor attempts exceeded")
	// ErrPendingExpired is an exported constant or variable used by the authentication engine.
	ErrPendingExpired = errors.New("pending login expired")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrConfigInvalid is returned by Builder.Build when Config.Validate fails.
	ErrConfigInvalid = errors.New("invalid configuration")
)
