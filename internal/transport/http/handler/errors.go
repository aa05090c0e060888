package handler

const (
	errInternalServer      = "Internal server error"
	errCodeInvalid         = "Code is invalid or expired"
	errEmailTaken          = "An account with this email already exists"
	errRegistrationExpired = "Registration expired, sign up again"
	errInvalidCredentials  = "Invalid email or password"
	errUnauthorized        = "Unauthorized"
	errTaskNotFound        = "Task not found"
)
