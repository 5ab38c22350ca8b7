package models

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformIOS     Platform = "IOS"
	PlatformAndroid Platform = "ANDROID"
)

// ParsePlatform принимает значения в формате API ("ios" / "android")
func ParsePlatform(value string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ios":
		return PlatformIOS, true
	case "android":
		return PlatformAndroid, true
	}
	return "", false
}

// MobileApp создаётся при онбординге воркспейса, здесь только читается
type MobileApp struct {
	ID                 string    `json:"id"`
	WorkspaceID        string    `json:"workspace_id"`
	Name               string    `json:"name"`
	IOSBundleID        *string   `json:"ios_bundle_id,omitempty"`
	AppStoreID         *string   `json:"app_store_id,omitempty"`
	AndroidPackageName *string   `json:"android_package_name,omitempty"`
	PlayStoreID        *string   `json:"play_store_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// HasAndroid сообщает, настроен ли у приложения хоть один Android-идентификатор
func (a *MobileApp) HasAndroid() bool {
	return a.PlayPackage() != ""
}

// PlayPackage возвращает id для Play Store: play_store_id, затем android_package_name
func (a *MobileApp) PlayPackage() string {
	if a.PlayStoreID != nil && *a.PlayStoreID != "" {
		return *a.PlayStoreID
	}
	if a.AndroidPackageName != nil && *a.AndroidPackageName != "" {
		return *a.AndroidPackageName
	}
	return ""
}

func (a *MobileApp) AppStoreNumericID() string {
	if a.AppStoreID == nil {
		return ""
	}
	return *a.AppStoreID
}
