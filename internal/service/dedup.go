package service

import (
	"race-tracker/internal/domain"
)

// Comparable is the part of an observation that decides whether it is worth
// a new snapshot. Splits are not compared.
type Comparable struct {
	Status             domain.Status
	OverallRank        *int
	OverallTimeSeconds *int
	StationOrder       *int
}

func ComparableOfSnapshot(s *domain.CompetitorSnapshot) Comparable {
	return Comparable{
		Status:             s.Status,
		OverallRank:        s.OverallRank,
		OverallTimeSeconds: s.OverallTimeSeconds,
		StationOrder:       s.LastCompletedStationOrder,
	}
}

func ComparableOfDetail(d *domain.AthleteDetail) Comparable {
	return Comparable{
		Status:             d.Status,
		OverallRank:        d.OverallRank,
		OverallTimeSeconds: d.OverallTimeSeconds,
		StationOrder:       d.LastCompletedStationOrder,
	}
}

func (c Comparable) Equal(o Comparable) bool {
	return c.Status == o.Status &&
		equalInt(c.OverallRank, o.OverallRank) &&
		equalInt(c.OverallTimeSeconds, o.OverallTimeSeconds) &&
		equalInt(c.StationOrder, o.StationOrder)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IsDuplicate reports whether detail carries nothing new compared to the
// latest stored snapshot. With no prior snapshot nothing is a duplicate.
func IsDuplicate(latest *domain.CompetitorSnapshot, detail *domain.AthleteDetail) bool {
	if latest == nil {
		return false
	}
	return ComparableOfSnapshot(latest).Equal(ComparableOfDetail(detail))
}

// IsRegression reports whether detail would move the competitor backwards:
// out of a terminal status, or to an earlier station while in progress.
// A finisher may still be marked dnf or dsq afterwards.
func IsRegression(latest *domain.CompetitorSnapshot, detail *domain.AthleteDetail) bool {
	if latest == nil {
		return false
	}
	if latest.Status == domain.StatusFinished {
		switch detail.Status {
		case domain.StatusFinished, domain.StatusDNF, domain.StatusDSQ:
			return false
		}
		return true
	}
	if latest.Status.Terminal() {
		return detail.Status != latest.Status
	}
	if latest.Status == domain.StatusInProgress {
		switch detail.Status {
		case domain.StatusNotStarted:
			return true
		case domain.StatusInProgress:
			if latest.LastCompletedStationOrder != nil && detail.LastCompletedStationOrder != nil {
				return *detail.LastCompletedStationOrder < *latest.LastCompletedStationOrder
			}
		}
	}
	return false
}
