package season

import (
	"strings"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
)

// DefaultSouthernRegions lists ISO 3166-1 alpha-2 codes treated as
// southern-hemisphere when no table is configured.
var DefaultSouthernRegions = []string{
	"AR", "AU", "BO", "BR", "BW", "CL", "FJ", "LS", "MG", "MU", "MZ",
	"NA", "NZ", "PE", "PY", "SZ", "UY", "ZA", "ZM", "ZW",
}

// Resolver maps a date and region code to a season. Regions not in the
// southern table, including empty and unknown codes, are northern.
type Resolver struct {
	southern map[string]struct{}
}

func NewResolver(southernRegions []string) *Resolver {
	m := make(map[string]struct{}, len(southernRegions))
	for _, code := range southernRegions {
		if code = normalize(code); code != "" {
			m[code] = struct{}{}
		}
	}
	return &Resolver{southern: m}
}

func (r *Resolver) Hemisphere(regionCode string) domain.Hemisphere {
	if _, ok := r.southern[normalize(regionCode)]; ok {
		return domain.HemisphereSouthern
	}
	return domain.HemisphereNorthern
}

// Resolve uses now's own calendar month; callers pass now in the user's zone.
func (r *Resolver) Resolve(now time.Time, regionCode string) domain.Season {
	northern := northernSeason(now.Month())
	if r.Hemisphere(regionCode) == domain.HemisphereNorthern {
		return northern
	}
	return invert(northern)
}

func northernSeason(m time.Month) domain.Season {
	switch {
	case m >= time.March && m <= time.May:
		return domain.SeasonSpring
	case m >= time.June && m <= time.August:
		return domain.SeasonSummer
	case m >= time.September && m <= time.November:
		return domain.SeasonFall
	default:
		return domain.SeasonWinter
	}
}

func invert(s domain.Season) domain.Season {
	switch s {
	case domain.SeasonSpring:
		return domain.SeasonFall
	case domain.SeasonSummer:
		return domain.SeasonWinter
	case domain.SeasonFall:
		return domain.SeasonSpring
	default:
		return domain.SeasonSummer
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
