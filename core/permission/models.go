package permission

// Screen is an addressable UI/capability surface grantable to roles or
// individual users.
type Screen struct {
	ID          string `json:"id"`
	Key         string `json:"screen_key"`
	DisplayName string `json:"display_name"`
}

// RoleGrant gives a screen to every user holding a role tag.
type RoleGrant struct {
	RoleName string `json:"role_name"`
	ScreenID string `json:"screen_id"`
}

// UserGrant gives a screen to one specific user regardless of role.
// Grants are strictly additive; there are no deny semantics.
type UserGrant struct {
	UserID   string `json:"user_id"`
	ScreenID string `json:"screen_id"`
}

// RolePermissionsUpdate replaces a role's full grant set.
type RolePermissionsUpdate struct {
	RoleName  string   `json:"role_name" validate:"required,rolename"`
	ScreenIDs []string `json:"screen_ids"`
}

// UserPermissionsUpdate replaces a user's full override set.
type UserPermissionsUpdate struct {
	UserID    string   `json:"user_id" validate:"required"`
	ScreenIDs []string `json:"screen_ids"`
}
