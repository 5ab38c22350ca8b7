package models

import "strings"

// Role упорядочена: Viewer < Analyst < Admin < Owner
type Role int

const (
	RoleViewer Role = iota + 1
	RoleAnalyst
	RoleAdmin
	RoleOwner
)

var roleNames = map[Role]string{
	RoleViewer:  "VIEWER",
	RoleAnalyst: "ANALYST",
	RoleAdmin:   "ADMIN",
	RoleOwner:   "OWNER",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

func (r Role) AtLeast(required Role) bool {
	return r >= required
}

func ParseRole(value string) (Role, bool) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for role, name := range roleNames {
		if name == upper {
			return role, true
		}
	}
	return 0, false
}

// Membership членство пользователя сессии в воркспейсе
type Membership struct {
	UserID      string
	WorkspaceID string
	Role        Role
}

// Actor вызывающая сторона. Authorized вычисляется снаружи (роль сессии или scope ключа),
// сервисы не знают про иерархию ролей.
type Actor struct {
	WorkspaceID string
	UserID      string
	AppID       *string // привязка ingestion-ключа к приложению
	Authorized  bool
}
