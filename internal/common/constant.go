package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Account roles and statuses as stored in profiles.role / profiles.status.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"

	StatusPending = "pending"
	StatusActive  = "active"
)

// Activity log actions.
const (
	ActionNoteView       = "note_view"
	ActionAttachmentOpen = "attachment_open"
)
