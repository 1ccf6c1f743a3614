package resolver

import (
	"strings"

	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
)

// LocateFilter narrows a location query. Items applies to the flat records;
// the remaining fields apply to the structural location attached to them.
type LocateFilter struct {
	Items       repositories.ItemFilter
	PodBarcode  string
	FaceLetter  string
	BinID       string
	BinIDPrefix string
}

// HasLocationConstraints reports whether the filter restricts by pod, face or bin
func (f LocateFilter) HasLocationConstraints() bool {
	return f.PodBarcode != "" || f.FaceLetter != "" || f.BinID != "" || f.BinIDPrefix != ""
}

// MatchesLocation applies the pod/face/bin constraints to a location. A nil
// location only matches an unconstrained filter.
func (f LocateFilter) MatchesLocation(loc *entities.BinLocation) bool {
	if loc == nil {
		return !f.HasLocationConstraints()
	}
	if f.PodBarcode != "" && loc.PodBarcode != f.PodBarcode {
		return false
	}
	return f.matchesBin(loc.FaceLetter, loc.BinID)
}

func (f LocateFilter) matchesBin(faceLetter, binID string) bool {
	if f.FaceLetter != "" && faceLetter != entities.NormalizeFaceLetter(f.FaceLetter) {
		return false
	}
	if f.BinID != "" && binID != strings.ToLower(strings.TrimSpace(f.BinID)) {
		return false
	}
	if f.BinIDPrefix != "" && !strings.HasPrefix(binID, strings.ToLower(strings.TrimSpace(f.BinIDPrefix))) {
		return false
	}
	return true
}
