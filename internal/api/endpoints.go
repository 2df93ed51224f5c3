package api

import (
	"fmt"
	"net/url"
	"strings"

	"race-tracker/internal/config"
	"race-tracker/internal/constants"
)

// Endpoints builds page URLs on the results host.
type Endpoints struct {
	BaseURL string
}

func NewEndpoints(cfg *config.Config) Endpoints {
	return Endpoints{BaseURL: cfg.ResultsBaseURL}
}

func (e Endpoints) base(slug string) string {
	return strings.TrimRight(e.BaseURL, "/") + "/" + url.PathEscape(slug) + "/"
}

// SearchURL is the ranking list filtered by family name.
func (e Endpoints) SearchURL(slug, eventCode, familyName string) string {
	return fmt.Sprintf("%s?pid=list_overall&pidp=ranking_nav&event=%s&search%%5Bname%%5D=%s&num_results=%d",
		e.base(slug), url.QueryEscape(eventCode), url.QueryEscape(familyName), constants.SearchResults)
}

// DetailURL is one athlete's detail page.
func (e Endpoints) DetailURL(slug, eventCode, externalID string) string {
	return fmt.Sprintf("%s?content=detail&fpid=list_overall&pid=list_overall&idp=%s&lang=EN_CAP&event=%s",
		e.base(slug), url.QueryEscape(externalID), url.QueryEscape(eventCode))
}
