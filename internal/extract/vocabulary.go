package extract

import (
	"fmt"
	"strings"

	"race-tracker/internal/domain"
)

// stationKeywords maps split-table labels to stations. Lookup walks stations
// in course order so "run 1" is tried before "row".
var stationKeywords = map[domain.Station][]string{
	domain.StationRun1:            {"run 1", "running 1", "run1"},
	domain.StationSkiErg:          {"skierg", "ski erg", "ski-erg"},
	domain.StationRun2:            {"run 2", "running 2", "run2"},
	domain.StationSledPush:        {"sled push"},
	domain.StationRun3:            {"run 3", "running 3", "run3"},
	domain.StationSledPull:        {"sled pull"},
	domain.StationRun4:            {"run 4", "running 4", "run4"},
	domain.StationBurpeeBroadJump: {"burpee", "broad jump", "bbj"},
	domain.StationRun5:            {"run 5", "running 5", "run5"},
	domain.StationRow:             {"row", "rowing"},
	domain.StationRun6:            {"run 6", "running 6", "run6"},
	domain.StationFarmersCarry:    {"farmer", "carry"},
	domain.StationRun7:            {"run 7", "running 7", "run7"},
	domain.StationSandbagLunges:   {"sandbag", "lunge"},
	domain.StationRun8:            {"run 8", "running 8", "run8"},
	domain.StationWallBalls:       {"wall ball"},
}

// ValidateVocabulary checks that every station has at least one keyword and
// that no keyword is claimed by two stations.
func ValidateVocabulary() error {
	if err := domain.ValidateStations(); err != nil {
		return err
	}
	owner := make(map[string]domain.Station)
	for _, s := range domain.Stations() {
		kws := stationKeywords[s]
		if len(kws) == 0 {
			return fmt.Errorf("station %q has no keywords", s.Name())
		}
		for _, kw := range kws {
			if kw != strings.ToLower(kw) {
				return fmt.Errorf("keyword %q for %q is not lower case", kw, s.Name())
			}
			if prev, ok := owner[kw]; ok {
				return fmt.Errorf("keyword %q claimed by %q and %q", kw, prev.Name(), s.Name())
			}
			owner[kw] = s
		}
	}
	if len(stationKeywords) != domain.TotalStations {
		return fmt.Errorf("keyword table has %d stations, want %d", len(stationKeywords), domain.TotalStations)
	}
	return nil
}

// MatchStation resolves a free-text label to a station, or StationUnknown.
func MatchStation(label string) domain.Station {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return domain.StationUnknown
	}
	for _, s := range domain.Stations() {
		for _, kw := range stationKeywords[s] {
			if strings.Contains(label, kw) {
				return s
			}
		}
	}
	return domain.StationUnknown
}
