package domain

import "slices"

// Identity is what the identity gate vouches for. Users themselves live in
// the external auth service.
type Identity struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
}

func (i Identity) DisplayName() string {
	if i.Username != "" {
		return i.Username
	}
	return i.UserID
}

const (
	UserRoleVideoEditor    = "video_editor"
	UserRoleContentCreator = "content_creator"
	UserRoleYoutuber       = "youtuber"
)

var UserRoles = []string{UserRoleVideoEditor, UserRoleContentCreator, UserRoleYoutuber}

func IsValidUserRole(role string) bool {
	return slices.Contains(UserRoles, role)
}
