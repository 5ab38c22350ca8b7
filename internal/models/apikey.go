package models

import (
	"time"
)

type Scope string

const (
	ScopeInstallWrite Scope = "mobile:install:write"
	ScopeEventWrite   Scope = "mobile:event:write"
	ScopeSkanWrite    Scope = "mobile:skan:write"
	ScopeCostWrite    Scope = "cost:write"
)

var AllScopes = []Scope{ScopeInstallWrite, ScopeEventWrite, ScopeSkanWrite, ScopeCostWrite}

func IsKnownScope(s string) bool {
	for _, scope := range AllScopes {
		if string(scope) == s {
			return true
		}
	}
	return false
}

// IngestionAPIKey хранит только sha256 от ключа и несекретный префикс для отображения
type IngestionAPIKey struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	AppID           *string    `json:"app_id"`
	CreatedByUserID *string    `json:"created_by_user_id,omitempty"`
	Name            string     `json:"name"`
	KeyPrefix       string     `json:"key_prefix"`
	KeyHash         string     `json:"-"`
	Scopes          []string   `json:"scopes"`
	IsActive        bool       `json:"is_active"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	RevokedAt       *time.Time `json:"revoked_at"`
	CreatedAt       time.Time  `json:"created_at"`

	// AppName заполняется только в списке ключей
	AppName *string `json:"app_name,omitempty"`
}

func (k *IngestionAPIKey) HasScope(scope Scope) bool {
	for _, s := range k.Scopes {
		if s == string(scope) {
			return true
		}
	}
	return false
}

// IngestionAuth результат успешной проверки ключа
type IngestionAuth struct {
	KeyID       string
	WorkspaceID string
	AppID       *string
	Scopes      []string
}

type CreateKeyInput struct {
	Name   string
	AppID  string
	Scopes []string
}

// CreatedKey открытый ключ отдаётся только один раз, при создании
type CreatedKey struct {
	Key       IngestionAPIKey
	Plaintext string
}
