package domain

import "strings"

// Role is what a connection does inside a session.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleCamera Role = "camera"
)

// ParseRole maps client-provided role names. Anything unknown is a viewer;
// "game" is what the desktop client historically called itself.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "camera", "phone", "controller":
		return RoleCamera
	default:
		return RoleViewer
	}
}

// Member represents a connection's participation meta for a session.
// No transport or lifecycle logic here.
type Member struct {
	Role     Role
	CameraID string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(role Role, cameraID string) *Member {
	return &Member{Role: role, CameraID: cameraID}
}

func (m *Member) IsCamera() bool { return m != nil && m.Role == RoleCamera }
