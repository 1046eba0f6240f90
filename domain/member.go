package domain

// Role is a member's permission level within the workspace.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// Valid reports whether the role is one of the known wire values.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleEditor || r == RoleViewer
}

// Member represents a person on the project team. Email is unique
// within the member set; the server enforces it.
type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// FindMember resolves a member id against the given set. The second
// return is false for the unassigned sentinel and for ids no longer
// present (a removed member may still be referenced by tasks).
func FindMember(members []Member, id string) (Member, bool) {
	if id == Unassigned {
		return Member{}, false
	}
	for _, m := range members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}
