package repository

import (
	"race-tracker/internal/db"
	"race-tracker/internal/domain"
)

func toDomainRace(r db.TrackedRace) domain.TrackedRace {
	return domain.TrackedRace{
		ID:                  r.ID,
		EventURLSlug:        r.EventUrlSlug,
		EventCode:           r.EventCode,
		EventLabel:          r.EventLabel,
		IsActive:            r.IsActive,
		PollIntervalSeconds: int(r.PollIntervalSeconds),
		LastPolledAt:        r.LastPolledAt,
		LastError:           r.LastError,
		ConsecutiveErrors:   int(r.ConsecutiveErrors),
		CreatedAt:           r.CreatedAt,
	}
}

func toDomainCompetitor(c db.TrackedCompetitor) domain.TrackedCompetitor {
	return domain.TrackedCompetitor{
		ID:          c.ID,
		RaceID:      c.RaceID,
		AthleteName: c.AthleteName,
		BibNumber:   c.BibNumber,
		ExternalID:  c.ExternalID,
		Gender:      c.Gender,
		Division:    c.Division,
		AgeGroup:    c.AgeGroup,
		Position:    int(c.Position),
		CreatedAt:   c.CreatedAt,
	}
}

func toDomainSnapshot(s db.CompetitorSnapshot) domain.CompetitorSnapshot {
	return domain.CompetitorSnapshot{
		ID:                        s.ID,
		CompetitorID:              s.CompetitorID,
		CapturedAt:                s.CapturedAt,
		OverallRank:               intPtr(s.OverallRank),
		OverallTimeSeconds:        intPtr(s.OverallTimeSeconds),
		OverallTimeDisplay:        s.OverallTimeDisplay,
		Status:                    domain.Status(s.Status),
		LastCompletedStation:      s.LastCompletedStation,
		LastCompletedStationOrder: intPtr(s.LastCompletedStationOrder),
		SplitTimesJSON:            s.SplitTimesJson,
		RoxzoneTimeSeconds:        intPtr(s.RoxzoneTimeSeconds),
	}
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func int64Ptr(v *int) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}
