package feed

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

const WhatJobsBaseURL = "https://api.whatjobs.com/api/v1/jobs.xml"

// BuildURL assembles the WhatJobs search request for this source.
func (w *WhatJobsConfig) BuildURL(userAgent string) (string, error) {
	publisherID := strings.TrimSpace(w.PublisherID)
	if publisherID == "" {
		return "", errors.New("whatjobs publisher_id is required")
	}

	params := url.Values{}
	params.Set("publisher", publisherID)
	params.Set("user_ip", firstNonEmpty(strings.TrimSpace(w.UserIP), "127.0.0.1"))
	params.Set("user_agent", firstNonEmpty(strings.TrimSpace(w.UserAgent), userAgent))
	params.Set("snippet", "full")

	if keyword := strings.TrimSpace(w.Keyword); keyword != "" {
		params.Set("keyword", keyword)
	}
	if location := strings.TrimSpace(w.Location); location != "" {
		params.Set("location", location)
	}
	if w.Limit != 0 {
		params.Set("limit", strconv.Itoa(clamp(w.Limit, 1, 100)))
	}
	if w.Page != 0 {
		params.Set("page", strconv.Itoa(max(w.Page, 1)))
	}
	params.Set("age_days", strconv.Itoa(clamp(w.AgeDays, 0, 30)))

	return WhatJobsBaseURL + "?" + params.Encode(), nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
