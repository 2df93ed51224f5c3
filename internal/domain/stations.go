package domain

import "fmt"

// Station is a race segment in course order. Runs (odd) alternate with
// workout stations (even).
type Station int

const (
	// StationUnknown is returned for labels outside the vocabulary. Rows
	// resolving to it are dropped by the extractor.
	StationUnknown Station = iota
	StationRun1
	StationSkiErg
	StationRun2
	StationSledPush
	StationRun3
	StationSledPull
	StationRun4
	StationBurpeeBroadJump
	StationRun5
	StationRow
	StationRun6
	StationFarmersCarry
	StationRun7
	StationSandbagLunges
	StationRun8
	StationWallBalls
)

// TotalStations is the number of segments in a complete race.
const TotalStations = 16

var stationNames = [...]string{
	StationUnknown:         "",
	StationRun1:            "Running 1",
	StationSkiErg:          "1000m SkiErg",
	StationRun2:            "Running 2",
	StationSledPush:        "50m Sled Push",
	StationRun3:            "Running 3",
	StationSledPull:        "50m Sled Pull",
	StationRun4:            "Running 4",
	StationBurpeeBroadJump: "80m Burpee Broad Jump",
	StationRun5:            "Running 5",
	StationRow:             "1000m Row",
	StationRun6:            "Running 6",
	StationFarmersCarry:    "200m Farmers Carry",
	StationRun7:            "Running 7",
	StationSandbagLunges:   "100m Sandbag Lunges",
	StationRun8:            "Running 8",
	StationWallBalls:       "Wall Balls",
}

// FinalStation is the last segment; a finish time implies it was completed.
const FinalStation = StationWallBalls

// Stations lists the vocabulary in course order.
func Stations() []Station {
	out := make([]Station, 0, TotalStations)
	for s := StationRun1; s <= StationWallBalls; s++ {
		out = append(out, s)
	}
	return out
}

func (s Station) Name() string {
	if s < StationUnknown || int(s) >= len(stationNames) {
		return ""
	}
	return stationNames[s]
}

func (s Station) Order() int {
	if !s.Known() {
		return 0
	}
	return int(s)
}

func (s Station) Known() bool {
	return s >= StationRun1 && s <= StationWallBalls
}

func (s Station) String() string {
	if !s.Known() {
		return "unknown"
	}
	return s.Name()
}

// ValidateStations checks that the vocabulary covers every order 1..16 with a
// unique, non-empty name.
func ValidateStations() error {
	if len(stationNames) != TotalStations+1 {
		return fmt.Errorf("station vocabulary has %d entries, want %d", len(stationNames)-1, TotalStations)
	}
	seen := make(map[string]Station, TotalStations)
	for _, s := range Stations() {
		name := stationNames[s]
		if name == "" {
			return fmt.Errorf("station %d has no name", int(s))
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("station name %q used by orders %d and %d", name, int(prev), int(s))
		}
		seen[name] = s
	}
	return nil
}
