package model

// Role is resolved by the external auth layer and passed down with every
// request. The engine never infers a role from configuration.
type Role string

const (
	RolePresenter Role = "presenter"
	RoleFollower  Role = "follower"
)

func (r Role) Valid() bool {
	return r == RolePresenter || r == RoleFollower
}

// Identity is the trusted {user_id, role} pair handed to the engine.
type Identity struct {
	UserID string
	Role   Role
}
