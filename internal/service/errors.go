package service

import (
	"errors"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
)

// storeError maps a document store failure to an AppError. A missing document
// becomes NotFound for the named resource; AppErrors pass through.
func storeError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

func requireSession(sess *identity.Session) error {
	if sess == nil || sess.UserID == "" {
		return models.NewUnauthorizedError("Sign in required")
	}
	return nil
}
