package httpdto

type ParticipantRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
}

type CreateConversationRequest struct {
	Participants []ParticipantRequest `json:"participants"`
	Category     string               `json:"category,omitempty"`
}

type UpdateCategoryRequest struct {
	Category string `json:"category"`
}

type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type RenameParticipantRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type RenameParticipantResponse struct {
	Updated int64 `json:"updated"`
}
