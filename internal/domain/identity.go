package domain

// Identity is the verified user identity attached to a live session.
// It is derived from the connection credential, never from client payloads.
type Identity struct {
	UUID     string `json:"uuid"`
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
}
