package profiles

import (
	"context"
	"strings"

	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/internal/localcache"
	"github.com/angelmondragon/allergyscan/pkg/db/models"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/types"
	"go.uber.org/multierr"
)

// Service loads and saves the caller's allergy profile. Signed-in users are read from the
// remote store first; the device copy covers anonymous users and remote outages. Device
// copies are keyed per identity, so one caller never sees another's allergens.
type Service interface {
	Load(ctx context.Context, identity types.Identity) (allergens.Profile, error)
	Save(ctx context.Context, identity types.Identity, tokens []string) (allergens.Profile, error)
}

type service struct {
	repo  Repository
	local localcache.Store
	logg  *logger.Logger
}

// NewService wires the profile dependencies. repo may be nil when no remote store is configured.
func NewService(repo Repository, local localcache.Store, logg *logger.Logger) (Service, error) {
	if local == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "local cache store required")
	}
	if logg == nil {
		logg = logger.Discard()
	}
	return &service{repo: repo, local: local, logg: logg}, nil
}

func (s *service) Load(ctx context.Context, identity types.Identity) (allergens.Profile, error) {
	key := localcache.ProfileKey(identity.UserID)
	if identity.Present() && s.repo != nil {
		row, err := s.repo.FindByUser(ctx, identity.UserID)
		switch {
		case err != nil:
			s.logg.WarnErr(s.logg.WithUserID(ctx, identity.UserID), "profiles.remote_load_failed", err)
		case row != nil:
			profile := allergens.ParseProfile(identity, row.Allergies)
			if err := s.local.Set(ctx, key, profile.String()); err != nil {
				s.logg.WarnErr(ctx, "profiles.local_sync_failed", err)
			}
			return profile, nil
		}
	}

	raw, _, err := s.local.Get(ctx, key)
	if err != nil {
		return allergens.NewProfile(identity, nil), pkgerrors.Wrap(pkgerrors.CodeLocalStorage, err, "read allergy profile")
	}
	return allergens.ParseProfile(identity, raw), nil
}

// Save writes the profile to the device and, for signed-in users, the remote store.
// The normalized profile is returned even when a write failed.
func (s *service) Save(ctx context.Context, identity types.Identity, tokens []string) (allergens.Profile, error) {
	profile := allergens.NewProfile(identity, tokens)
	serialized := profile.String()

	var errs error
	if err := s.local.Set(ctx, localcache.ProfileKey(identity.UserID), serialized); err != nil {
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeLocalStorage, err, "save allergy profile locally"))
	}
	if identity.Present() && s.repo != nil {
		row := &models.AllergyProfile{UserID: identity.UserID, Allergies: serialized}
		if err := s.repo.Upsert(ctx, row); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save allergy profile"))
		}
	}
	if errs != nil {
		s.logg.WarnErr(s.logg.WithUserID(ctx, identity.UserID), "profiles.save_failed", errs)
		return profile, firstTyped(errs)
	}
	return profile, nil
}

// SplitRaw accepts the comma-delimited form used by older clients.
func SplitRaw(raw string) []string {
	return strings.Split(raw, ",")
}

func firstTyped(err error) error {
	errs := multierr.Errors(err)
	if len(errs) == 1 {
		return errs[0]
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save allergy profile")
}
