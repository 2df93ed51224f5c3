// Package extract turns Mika Timing result pages into typed values.
//
// Every function here is pure: malformed or drifted markup degrades to
// partial or empty results and never returns an error.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"race-tracker/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

var (
	idpPattern   = regexp.MustCompile(`idp=([^&]+)`)
	rankClass    = regexp.MustCompile(`(?i)rank|place|position`)
	timeClass    = regexp.MustCompile(`(?i)time|result`)
	bibClass     = regexp.MustCompile(`(?i)bib|number`)
	spacePattern = regexp.MustCompile(`\s+`)
)

type rankingStrategy struct {
	name    string
	extract func(doc *goquery.Document) []domain.RankingEntry
}

// rankingStrategies run in order; the first one producing entries wins.
var rankingStrategies = []rankingStrategy{
	{name: "list-group", extract: rankingFromListGroup},
	{name: "table-rows", extract: rankingFromTableRows},
	{name: "idp-links", extract: rankingFromIDPLinks},
}

// ParseRanking extracts search/ranking candidates from a list page.
func ParseRanking(html []byte) []domain.RankingEntry {
	entries, _ := ParseRankingWithStrategy(html)
	return entries
}

// ParseRankingWithStrategy is ParseRanking that also names the strategy that
// produced the entries ("" when none did).
func ParseRankingWithStrategy(html []byte) ([]domain.RankingEntry, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, ""
	}
	for _, s := range rankingStrategies {
		if entries := s.extract(doc); len(entries) > 0 {
			return entries, s.name
		}
	}
	return []domain.RankingEntry{}, ""
}

func rankingFromListGroup(doc *goquery.Document) []domain.RankingEntry {
	var entries []domain.RankingEntry
	doc.Find("li.list-group-item").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		idp := externalIDFromHref(href)
		if idp == "" {
			return
		}

		name := text(item.Find("h4, h5, strong, span").First())
		if name == "" {
			name = text(link)
		}
		if name == "" {
			return
		}

		entry := domain.RankingEntry{Name: name, ExternalID: idp}
		if el := findByClass(item, rankClass); el != nil {
			entry.Rank = parseRank(text(el))
		}
		if el := findByClass(item, timeClass); el != nil {
			entry.TimeDisplay = optional(text(el))
		}
		if el := findByClass(item, bibClass); el != nil {
			entry.Bib = optional(text(el))
		}
		entries = append(entries, entry)
	})
	return entries
}

func rankingFromTableRows(doc *goquery.Document) []domain.RankingEntry {
	var entries []domain.RankingEntry
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		idp := externalIDFromHref(href)
		if idp == "" {
			return
		}
		name := text(link)
		if name == "" {
			return
		}

		entry := domain.RankingEntry{Name: name, ExternalID: idp}
		cells := row.Find("td")
		if cells.Length() >= 1 {
			entry.Rank = parseRank(text(cells.First()))
		}
		if cells.Length() >= 3 {
			entry.TimeDisplay = optional(text(cells.Last()))
		}
		entries = append(entries, entry)
	})
	return entries
}

func rankingFromIDPLinks(doc *goquery.Document) []domain.RankingEntry {
	var entries []domain.RankingEntry
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.Contains(href, "idp=") && !strings.Contains(href, "content=detail") {
			return
		}
		idp := externalIDFromHref(href)
		if idp == "" {
			return
		}
		if name := text(link); len(name) > 2 {
			entries = append(entries, domain.RankingEntry{Name: name, ExternalID: idp})
		}
	})
	return entries
}

// externalIDFromHref reads the idp (or idp[]) query parameter of a detail link.
func externalIDFromHref(href string) string {
	if u, err := url.Parse(href); err == nil {
		q := u.Query()
		if v := q.Get("idp"); v != "" {
			return v
		}
		if v := q.Get("idp[]"); v != "" {
			return v
		}
	}
	if m := idpPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

// findByClass returns the first descendant of sel carrying a class token that
// matches re, or nil.
func findByClass(sel *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	sel.Find("[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		for _, token := range strings.Fields(class) {
			if re.MatchString(token) {
				found = el
				return false
			}
		}
		return true
	})
	return found
}

// text is the whitespace-collapsed text of the first node of sel.
func text(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(spacePattern.ReplaceAllString(sel.First().Text(), " "))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
