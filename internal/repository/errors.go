package repository

import "errors"

var (
	ErrAppNotFound     = errors.New("app not found")
	ErrLinkNotFound    = errors.New("link not found")
	ErrClickNotFound   = errors.New("click not found")
	ErrInstallNotFound = errors.New("install not found")
	ErrKeyNotFound     = errors.New("ingestion key not found")
	ErrSessionNotFound = errors.New("session not found")

	// ErrConflict нарушение уникальности (slug, click_id, key_hash):
	// вызывающий может повторить с новым токеном
	ErrConflict = errors.New("unique constraint conflict")
)
