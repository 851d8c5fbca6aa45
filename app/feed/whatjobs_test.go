package feed

import (
	"net/url"
	"strings"
	"testing"
)

func TestWhatJobsBuildURL(t *testing.T) {
	config := &WhatJobsConfig{
		PublisherID: " 1234 ",
		Keyword:     "desenvolvedor go",
		Location:    "São Paulo",
		Limit:       250,
		Page:        -2,
		AgeDays:     45,
	}

	raw, err := config.BuildURL("JobComb/1.0")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.HasPrefix(raw, WhatJobsBaseURL+"?") {
		t.Errorf("Expected WhatJobs base URL, got %s", raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("Expected valid URL, got: %v", err)
	}
	params := parsed.Query()

	expected := map[string]string{
		"publisher":  "1234",
		"keyword":    "desenvolvedor go",
		"location":   "São Paulo",
		"limit":      "100",
		"page":       "1",
		"age_days":   "30",
		"snippet":    "full",
		"user_ip":    "127.0.0.1",
		"user_agent": "JobComb/1.0",
	}

	for key, value := range expected {
		if params.Get(key) != value {
			t.Errorf("Expected %s=%q, got %q", key, value, params.Get(key))
		}
	}
}

func TestWhatJobsBuildURLDefaults(t *testing.T) {
	config := &WhatJobsConfig{PublisherID: "1234", UserIP: "10.0.0.1", UserAgent: "Custom/2.0", AgeDays: -1}

	raw, err := config.BuildURL("JobComb/1.0")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	parsed, _ := url.Parse(raw)
	params := parsed.Query()

	if params.Has("limit") || params.Has("page") || params.Has("keyword") {
		t.Errorf("Expected unset parameters to be omitted, got %s", raw)
	}

	if params.Get("age_days") != "0" {
		t.Errorf("Expected age_days clamped to 0, got %s", params.Get("age_days"))
	}

	if params.Get("user_ip") != "10.0.0.1" || params.Get("user_agent") != "Custom/2.0" {
		t.Errorf("Expected configured user_ip and user_agent, got %s", raw)
	}
}

func TestWhatJobsBuildURLRequiresPublisher(t *testing.T) {
	config := &WhatJobsConfig{PublisherID: "  "}

	if _, err := config.BuildURL("JobComb/1.0"); err == nil {
		t.Error("Expected error without publisher_id")
	}
}
