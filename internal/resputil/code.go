package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired ErrorCode = 40101
	TokenInvalid ErrorCode = 40102

	// Login
	InvalidCredentials ErrorCode = 40106
	EmailAlreadyUsed   ErrorCode = 40107

	// User is not allowed to access the resource
	UserNotAllowed ErrorCode = 40301

	// Creators cannot apply to their own project
	SelfApplication ErrorCode = 40302

	ProjectNotFound     ErrorCode = 40401
	ApplicationNotFound ErrorCode = 40402

	// The application was decided before this request
	ApplicationAlreadyResponded ErrorCode = 40901
	// A pending application for the project already exists
	DuplicateApplication ErrorCode = 40902

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
