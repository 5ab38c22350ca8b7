package service

import (
	"context"
	"errors"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// resolveApp ищет приложение и проверяет, что оно принадлежит воркспейсу вызывающего
func resolveApp(ctx context.Context, apps repository.AppRepository, appID, workspaceID string) (*models.MobileApp, error) {
	app, err := apps.GetByID(ctx, appID)
	if err != nil {
		if errors.Is(err, repository.ErrAppNotFound) {
			return nil, ErrAppNotFound
		}
		return nil, err
	}

	if app.WorkspaceID != workspaceID {
		return nil, ErrAppWorkspaceMismatch
	}
	return app, nil
}
