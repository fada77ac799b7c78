package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/allergyscan/api/middleware"
	"github.com/angelmondragon/allergyscan/api/responses"
	"github.com/angelmondragon/allergyscan/api/validators"
	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/internal/profiles"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

// allergyInput accepts either "peanut, milk" or ["peanut", "milk"].
type allergyInput []string

func (a *allergyInput) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*a = profiles.SplitRaw(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

type saveProfileRequest struct {
	Allergies allergyInput `json:"allergies" validate:"max=100,dive,max=64"`
}

type profileResponse struct {
	Tokens     []string `json:"tokens"`
	Raw        string   `json:"raw"`
	Configured bool     `json:"configured"`
}

func newProfileResponse(p allergens.Profile) profileResponse {
	return profileResponse{
		Tokens:     p.Tokens,
		Raw:        p.String(),
		Configured: p.Configured(),
	}
}

func GetAllergyProfile(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		profile, err := sess.Profile(ctx, middleware.IdentityFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}

// PutAllergyProfile replaces the caller's allergy list.
func PutAllergyProfile(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := deviceSession(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body saveProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		profile, err := sess.SaveProfile(ctx, middleware.IdentityFromContext(ctx), body.Allergies)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}
