package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/allergyscan/api/middleware"
	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/api/validators"
	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/internal/goals"
	"github.com/angelmondragon/allergyscan/internal/history"
	"github.com/angelmondragon/allergyscan/internal/insights"
	"github.com/angelmondragon/allergyscan/internal/ocr"
	"github.com/angelmondragon/allergyscan/internal/pipeline"
	"github.com/angelmondragon/allergyscan/internal/scans"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/pagination"
)

const maxImageRefLength = 512

type submitScanRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	ImageRef    string `json:"image_ref" validate:"omitempty,max=512"`
}

type writeView struct {
	RecordID    string `json:"record_id"`
	Remote      bool   `json:"remote"`
	RemoteError string `json:"remote_error,omitempty"`
}

type scanResponse struct {
	Record        history.ScanRecord     `json:"record"`
	Write         writeView              `json:"write"`
	Determination insights.Determination `json:"determination"`
	Insight       insights.Result        `json:"insight"`
	Progress      goals.Progress         `json:"progress"`
	Unseen        int                    `json:"unseen"`
	Warnings      []pipeline.Warning     `json:"warnings"`
}

func newScanResponse(out *pipeline.Outcome) scanResponse {
	resp := scanResponse{
		Record:        out.Record,
		Determination: out.Determination,
		Insight:       out.Insight,
		Progress:      out.Progress,
		Unseen:        out.Unseen,
		Warnings:      out.Warnings,
	}
	if out.Write != nil {
		resp.Write = writeView{RecordID: out.Write.RecordID(), Remote: out.Write.Remote()}
		if local, ok := out.Write.(scans.WrittenLocalOnly); ok && local.RemoteErr != nil {
			resp.Write.RemoteError = local.RemoteErr.Error()
		}
	}
	return resp
}

// SubmitScan runs the scan pipeline on one uploaded image.
func SubmitScan(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body submitScanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		image, err := ocr.DecodeImage(body.ImageBase64)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "image_base64 is not a valid image").
				WithDetails(map[string]string{"image_base64": "must be base64 encoded"}))
			return
		}

		identity := middleware.IdentityFromContext(ctx)
		profile, err := sess.Profile(ctx, identity)
		if err != nil {
			logg.WarnErr(ctx, "scan.profile_unavailable", err)
		}

		out, err := sess.Pipeline.Run(ctx, pipeline.Request{
			Image:    image,
			ImageRef: validators.SanitizeString(body.ImageRef, maxImageRefLength),
			Identity: identity,
			Profile:  profile,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newScanResponse(out))
	}
}

// ScanHistory returns the device's detailed history, newest first.
func ScanHistory(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", sess.History.Cap(), 1, sess.History.Cap())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items": pagination.Head(sess.History.Entries(), limit),
			"cap":   sess.History.Cap(),
		})
	}
}

// ClearScanHistory deletes the user's remote scans and then the device history.
func ClearScanHistory(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := sess.Scans.DeleteAll(ctx, middleware.IdentityFromContext(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cleared": true})
	}
}

// RestoreScanHistory replaces the device history with the user's most recent remote scans.
func RestoreScanHistory(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		records, err := sess.Scans.Restore(ctx, middleware.IdentityFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": records})
	}
}

// ScanHighlight splits a history record's text into allergen and plain spans using the
// caller's current profile.
func ScanHighlight(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		scanID := strings.TrimSpace(chi.URLParam(r, "scanId"))
		if scanID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "scan id required"))
			return
		}

		var record *history.ScanRecord
		for _, entry := range sess.History.Entries() {
			if entry.ID == scanID {
				entry := entry
				record = &entry
				break
			}
		}
		if record == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "scan not in history"))
			return
		}

		profile, err := sess.Profile(ctx, middleware.IdentityFromContext(ctx))
		if err != nil {
			logg.WarnErr(ctx, "scan.profile_unavailable", err)
		}

		responses.WriteSuccess(w, map[string]any{
			"id":    record.ID,
			"spans": allergens.Highlight(record.Text, profile.Tokens),
		})
	}
}
