package controllers

import (
	"net/http"

	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

// TodayGoal recomputes today's progress so a day rollover is picked up on read.
func TodayGoal(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.Goals.Refresh())
	}
}
