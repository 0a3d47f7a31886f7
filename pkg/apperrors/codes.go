package apperrors

// Code is a machine-readable error reason.
type Code string

const (
	// Validation
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeEmailRequired       Code = "EMAIL_REQUIRED"
	CodeEmailInvalid        Code = "EMAIL_INVALID"
	CodeInvalidRole         Code = "INVALID_ROLE"
	CodeCannotInviteOwner   Code = "CANNOT_INVITE_OWNER"
	CodeTokenRequired       Code = "TOKEN_REQUIRED"
	CodeProjectNameRequired Code = "PROJECT_NAME_REQUIRED"
	CodeInvalidColumn       Code = "INVALID_COLUMN"
	CodeInvalidCellValue    Code = "INVALID_CELL_VALUE"

	// Not found
	CodeProjectNotFound    Code = "PROJECT_NOT_FOUND"
	CodeInvitationNotFound Code = "INVITATION_NOT_FOUND"
	CodeMembershipNotFound Code = "MEMBERSHIP_NOT_FOUND"
	CodeTaskNotFound       Code = "TASK_NOT_FOUND"
	CodeColumnNotFound     Code = "COLUMN_NOT_FOUND"
	CodeUserNotFound       Code = "USER_NOT_FOUND"

	// Expired / identity
	CodeInvitationExpired       Code = "INVITATION_EXPIRED"
	CodeInvitationEmailMismatch Code = "INVITATION_EMAIL_MISMATCH"

	// Conflict
	CodeMembershipExists      Code = "MEMBERSHIP_EXISTS"
	CodeTokenCollision        Code = "INVITATION_TOKEN_COLLISION"
	CodeTaskVersionConflict   Code = "TASK_VERSION_CONFLICT"
	CodeSchemaVersionConflict Code = "SCHEMA_VERSION_CONFLICT"
	CodeColumnExists          Code = "COLUMN_EXISTS"
	CodeDuplicate             Code = "DUPLICATE"

	// Authorization
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeNotProjectMember Code = "NOT_PROJECT_MEMBER"
	CodeInsufficientRole Code = "INSUFFICIENT_ROLE"
	CodeOwnerProtected   Code = "OWNER_PROTECTED"

	// Store
	CodeStoreFailure Code = "STORE_FAILURE"
)
