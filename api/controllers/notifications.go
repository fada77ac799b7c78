package controllers

import (
	"net/http"

	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

// ListNotifications returns the feed together with its unseen counter.
func ListNotifications(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.Notifications.Status())
	}
}

// MarkNotificationsSeen moves the watermark to the current feed length.
func MarkNotificationsSeen(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := sess.Notifications.MarkSeen(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func ClearNotifications(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sess.Notifications.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.Notifications.Status())
	}
}
