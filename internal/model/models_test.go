package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

func TestJobListingURL_PrefersApplyOption(t *testing.T) {
	j := model.JobListing{
		Link: "https://share.example/1",
		ApplyOptions: []model.ApplyOption{
			{Source: "Company Website", URL: "https://careers.acme.com/1"},
			{Source: "LinkedIn", URL: "https://linkedin.example/1"},
		},
	}
	assert.Equal(t, "https://careers.acme.com/1", j.URL())
}

func TestJobListingURL_FallsBackToLink(t *testing.T) {
	j := model.JobListing{Link: "https://share.example/1"}
	assert.Equal(t, "https://share.example/1", j.URL())

	j.ApplyOptions = []model.ApplyOption{{Source: "broken", URL: ""}}
	assert.Equal(t, "https://share.example/1", j.URL())
}

func TestHash_StableAndShort(t *testing.T) {
	a := model.Hash("some text")
	assert.Len(t, a, 16)
	assert.Equal(t, a, model.Hash("some text"))
	assert.NotEqual(t, a, model.Hash("some text."))
}

func TestProfileHash_ChangesWithContent(t *testing.T) {
	p1 := &model.CandidateProfile{Skills: []string{"Go"}}
	p2 := &model.CandidateProfile{Skills: []string{"Go", "Rust"}}

	assert.Equal(t, model.ProfileHash(p1), model.ProfileHash(p1))
	assert.NotEqual(t, model.ProfileHash(p1), model.ProfileHash(p2))
}
