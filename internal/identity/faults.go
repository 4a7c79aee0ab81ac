package identity

import "github.com/studyshelf/studyshelf/internal/fault"

var (
	// FaultNoAuthHeader is returned when the authorization header is absent.
	FaultNoAuthHeader = fault.Unauthorized("NoAuthHeader", "authorization header required")
	// FaultInvalidAuthFormat is returned when the header is not "<scheme> <value>".
	FaultInvalidAuthFormat = fault.Unauthorized("InvalidAuthFormat", "authorization header must be of the form 'Bearer <token>'")
	// FaultInvalidToken is returned when the credential is not a token this deployment issued.
	FaultInvalidToken = fault.Unauthorized("InvalidToken", "credential not recognized")
	// FaultTokenExpired is returned when the credential encodes an expiry in the past.
	FaultTokenExpired = fault.Unauthorized("TokenExpired", "credential expired")
	// FaultUserNotFound is returned when the credential decodes to an unknown user.
	FaultUserNotFound = fault.Unauthorized("UserNotFound", "no user for credential")
	// FaultAccountInactive is returned for suspended accounts before any mutating operation.
	FaultAccountInactive = fault.New(fault.ClassForbidden, "AccountInactive", "account is suspended")
	// FaultEmailTaken is returned when registering an email that already exists.
	FaultEmailTaken = fault.Conflict("EmailTaken", "email already registered")
	// FaultInvalidCredentials is returned on a login password mismatch.
	FaultInvalidCredentials = fault.Unauthorized("InvalidCredentials", "email or password incorrect")
	// FaultInvalidRole is returned when a registration role is neither student nor teacher.
	FaultInvalidRole = fault.Validation("InvalidRole", "role must be student or teacher")
)
