package entity

import "time"

// User is the projection of the user-management collaborator this service reads.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	RoleCode   string    `json:"role_code"`
	LarkOpenID string    `json:"lark_open_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Actor is the minimal identity used for authorization decisions.
type Actor struct {
	ID       string
	RoleName string
}

// AsActor projects a user to an actor.
func (u *User) AsActor() Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{ID: u.ID, RoleName: u.RoleCode}
}
