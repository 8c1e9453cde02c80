package seed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	appRepos "github.com/geclass/geclass/internal/app/repositories"
)

// LookupEnsurer inserts a lookup value unless it is already present.
type LookupEnsurer interface {
	Ensure(ctx context.Context, lookup appRepos.Lookup, value string) (int64, error)
}

// DefaultLookups are the choices offered when a course is registered.
var DefaultLookups = map[appRepos.Lookup][]string{
	appRepos.LookupUniversity: {
		"Universität Potsdam",
		"Andere",
	},
	appRepos.LookupProgram: {
		"Physik (Bachelor)",
		"Physik (Master)",
		"Physik (Lehramt)",
		"Physik (Nebenfach)",
	},
	appRepos.LookupExperience: {
		"1. Studienjahr",
		"2. Studienjahr",
		"3. Studienjahr",
		"Master",
	},
	appRepos.LookupCourseType: {
		"Grundpraktikum",
		"Fortgeschrittenenpraktikum",
		"Projektpraktikum",
	},
	appRepos.LookupTraditional: {
		"Traditionell",
		"Offen",
		"Gemischt",
	},
}

// seedOrder keeps the inserted ids stable between fresh databases.
var seedOrder = []appRepos.Lookup{
	appRepos.LookupUniversity,
	appRepos.LookupProgram,
	appRepos.LookupExperience,
	appRepos.LookupCourseType,
	appRepos.LookupTraditional,
}

// CreateDefaultData fills the lookup tables. Existing values are kept, so it is
// safe to run after every migration. Failures are collected and returned together.
func CreateDefaultData(ctx context.Context, lookups LookupEnsurer, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default lookup data...")
	var finalErr error

	for _, table := range seedOrder {
		for _, value := range DefaultLookups[table] {
			if _, err := lookups.Ensure(ctx, table, value); err != nil {
				lgr.Error().Err(err).Str("table", string(table)).Str("value", value).Msg("Error creating lookup value")
				finalErr = errors.Join(finalErr, err)
			}
		}
	}

	if finalErr == nil {
		lgr.Info().Msg("Default lookup data is in place")
	}
	return finalErr
}
