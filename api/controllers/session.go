package controllers

import (
	"net/http"

	"github.com/angelmondragon/allergyscan/api/middleware"
	"github.com/angelmondragon/allergyscan/internal/session"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
)

func deviceSession(r *http.Request) (*session.Session, error) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device context missing")
	}
	return sess, nil
}
