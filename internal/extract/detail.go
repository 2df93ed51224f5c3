package extract

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"race-tracker/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	nameClass    = regexp.MustCompile(`(?i)detail.*name|athlete.*name|f-__fullname`)
	detailRank   = regexp.MustCompile(`(?i)detail.*rank|f-__rank_overall`)
	detailTime   = regexp.MustCompile(`(?i)detail.*time|f-__finish_time_net|f-time_finish_netto`)
	detailBib    = regexp.MustCompile(`(?i)f-start_no|detail.*bib`)
	roxzoneLabel = regexp.MustCompile(`(?i)roxzone|transition`)
	dnfMarker    = regexp.MustCompile(`\bdnf\b|did not finish`)
	dsqMarker    = regexp.MustCompile(`\bdsq\b|disqualified`)
)

// ParseDetail extracts an athlete detail page. Missing fields stay nil.
func ParseDetail(page []byte) *domain.AthleteDetail {
	result := &domain.AthleteDetail{Status: domain.StatusNotStarted}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return result
	}

	if el := findByClass(doc.Selection, nameClass); el != nil {
		result.Name = optional(text(el))
	} else if h := doc.Find("h3").First(); h.Length() > 0 {
		result.Name = optional(text(h))
	} else if h := doc.Find("h4").First(); h.Length() > 0 {
		result.Name = optional(text(h))
	}

	if el := findByClass(doc.Selection, detailBib); el != nil {
		result.Bib = optional(text(el))
	}
	if el := findByClass(doc.Selection, detailRank); el != nil {
		result.OverallRank = parseRank(text(el))
	}
	if el := findByClass(doc.Selection, detailTime); el != nil {
		display := text(el)
		result.OverallTimeSeconds = clockPtr(display)
		if result.OverallTimeSeconds != nil {
			result.OverallTimeDisplay = optional(display)
		}
	}

	result.Splits = extractSplits(doc)
	deriveStatus(doc, result)
	result.RoxzoneTimeSeconds = extractRoxzone(doc)

	return result
}

type labelledValue struct {
	label string
	value string
}

// extractSplits reads split rows from tables, falling back to definition
// lists. Only the first row per station is kept.
func extractSplits(doc *goquery.Document) []domain.SplitTime {
	var rows []labelledValue
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		rows = append(rows, labelledValue{label: text(cells.First()), value: text(cells.Last())})
	})
	splits := splitsFrom(rows)
	if len(splits) > 0 {
		return splits
	}

	rows = rows[:0]
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		n := min(dts.Length(), dds.Length())
		for i := 0; i < n; i++ {
			rows = append(rows, labelledValue{label: text(dts.Eq(i)), value: text(dds.Eq(i))})
		}
	})
	return splitsFrom(rows)
}

func splitsFrom(rows []labelledValue) []domain.SplitTime {
	seen := make(map[domain.Station]bool)
	var splits []domain.SplitTime
	for _, row := range rows {
		station := MatchStation(row.label)
		if !station.Known() || seen[station] {
			continue
		}
		seen[station] = true

		split := domain.SplitTime{StationName: station.Name(), StationOrder: station.Order()}
		if secs, ok := ParseClock(row.value); ok {
			split.TimeSeconds = &secs
			display := row.value
			split.TimeDisplay = &display
		}
		splits = append(splits, split)
	}
	sort.SliceStable(splits, func(i, j int) bool {
		return splits[i].StationOrder < splits[j].StationOrder
	})
	return splits
}

// spacedText joins every text node in the document with a space so that
// adjacent cells never run together. Script and style bodies are skipped.
func spacedText(doc *goquery.Document) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// deriveStatus applies, in priority order: explicit DNF/DSQ markers, a
// finish time, the last timed split, and finally not_started.
func deriveStatus(doc *goquery.Document, result *domain.AthleteDetail) {
	pageText := strings.ToLower(spacedText(doc))

	switch {
	case dnfMarker.MatchString(pageText):
		result.Status = domain.StatusDNF
		return
	case dsqMarker.MatchString(pageText):
		result.Status = domain.StatusDSQ
		return
	}

	if result.OverallTimeSeconds != nil {
		result.Status = domain.StatusFinished
		setLastStation(result, domain.FinalStation.Name(), domain.FinalStation.Order())
		return
	}

	for i := len(result.Splits) - 1; i >= 0; i-- {
		split := result.Splits[i]
		if split.TimeSeconds != nil {
			result.Status = domain.StatusInProgress
			setLastStation(result, split.StationName, split.StationOrder)
			return
		}
	}

	result.Status = domain.StatusNotStarted
}

func setLastStation(result *domain.AthleteDetail, name string, order int) {
	result.LastCompletedStation = &name
	result.LastCompletedStationOrder = &order
}

// extractRoxzone finds the first text node naming roxzone/transition time
// and reads the time from its enclosing row or block.
func extractRoxzone(doc *goquery.Document) *int {
	var container *goquery.Selection
	doc.Find("body *").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		for _, n := range el.Nodes {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode && roxzoneLabel.MatchString(c.Data) {
					container = el.Closest("tr")
					if container.Length() == 0 {
						container = el.Closest("div")
					}
					return false
				}
			}
		}
		return true
	})
	if container == nil || container.Length() == 0 {
		return nil
	}

	if cell := findByClass(container, timeClass); cell != nil {
		return clockPtr(text(cell))
	}
	if cells := container.Find("td"); cells.Length() > 0 {
		return clockPtr(text(cells.Last()))
	}
	return nil
}
