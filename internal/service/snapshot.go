package service

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"race-tracker/internal/domain"
	"race-tracker/internal/trackerv1"
)

// NewSnapshot turns an extracted detail record into a snapshot row.
func NewSnapshot(competitorID string, detail *domain.AthleteDetail, capturedAt time.Time) (domain.CompetitorSnapshot, error) {
	snapshot := domain.CompetitorSnapshot{
		CompetitorID:              competitorID,
		CapturedAt:                capturedAt,
		OverallRank:               detail.OverallRank,
		OverallTimeSeconds:        detail.OverallTimeSeconds,
		OverallTimeDisplay:        detail.OverallTimeDisplay,
		Status:                    detail.Status,
		LastCompletedStation:      detail.LastCompletedStation,
		LastCompletedStationOrder: detail.LastCompletedStationOrder,
		RoxzoneTimeSeconds:        detail.RoxzoneTimeSeconds,
	}
	if len(detail.Splits) > 0 {
		encoded, err := EncodeSplits(detail.Splits)
		if err != nil {
			return domain.CompetitorSnapshot{}, err
		}
		snapshot.SplitTimesJSON = &encoded
	}
	return snapshot, nil
}

// EncodeSplits serializes splits as a station-name keyed object.
func EncodeSplits(splits []domain.SplitTime) (string, error) {
	m := make(map[string]trackerv1.Split, len(splits))
	for _, s := range splits {
		m[s.StationName] = trackerv1.Split{
			Order:       s.StationOrder,
			TimeDisplay: s.TimeDisplay,
			TimeSeconds: s.TimeSeconds,
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode splits: %w", err)
	}
	return string(b), nil
}

// DecodeSplits is the inverse of EncodeSplits. Unreadable data yields nil.
func DecodeSplits(raw *string) map[string]trackerv1.Split {
	if raw == nil || *raw == "" {
		return nil
	}
	var m map[string]trackerv1.Split
	if err := json.Unmarshal([]byte(*raw), &m); err != nil {
		return nil
	}
	return m
}

// Progress returns completed stations and the percentage of the course done,
// rounded to one decimal.
func Progress(order *int) (int, float64) {
	if order == nil || *order <= 0 {
		return 0, 0
	}
	completed := min(*order, domain.TotalStations)
	pct := float64(completed) / float64(domain.TotalStations) * 100
	return completed, math.Round(pct*10) / 10
}
