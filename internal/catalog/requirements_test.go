package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReturnsNilForFreeSkills(t *testing.T) {
	b := &Builder{PayTo: "0xPAYEE"}
	free, ok := SkillByID(SkillMarkdownToHTML)
	require.True(t, ok)
	assert.Nil(t, b.Build(free))
}

func TestBuildCoversEveryNetwork(t *testing.T) {
	b := &Builder{PayTo: "0xPAYEE", FacilitatorURL: "https://facilitator.test"}
	for _, skill := range PricedSkills() {
		req := b.Build(skill)
		require.NotNil(t, req, skill.ID)
		assert.Equal(t, RequirementsVersion, req.Version)
		assert.Equal(t, "/"+skill.ID, req.Resource)
		assert.Len(t, req.Accepts, len(Networks))
		for i, accept := range req.Accepts {
			assert.Equal(t, "exact", accept.Scheme)
			assert.Equal(t, Networks[i].CAIP2, accept.Network)
			assert.Equal(t, Networks[i].Asset, accept.Asset)
			assert.Equal(t, "0xPAYEE", accept.PayTo)
			assert.Equal(t, DefaultMaxTimeoutSeconds, accept.MaxTimeoutSeconds)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := &Builder{PayTo: "0xPAYEE"}
	skill, ok := SkillByID(SkillScreenshot)
	require.True(t, ok)
	assert.Equal(t, b.Build(skill), b.Build(skill))
}

func TestGaslessFlagFollowsNetworkCatalogue(t *testing.T) {
	b := &Builder{PayTo: "0xPAYEE"}
	skill, _ := SkillByID(SkillScreenshot)
	req := b.Build(skill)
	gasless := 0
	for _, accept := range req.Accepts {
		if accept.Gasless {
			gasless++
		}
	}
	assert.Equal(t, 1, gasless, "exactly the skale network is gasless")
}

func TestAcceptsNetwork(t *testing.T) {
	b := &Builder{PayTo: "0xPAYEE"}
	skill, _ := SkillByID(SkillAIAnalysis)
	req := b.Build(skill)
	assert.True(t, req.AcceptsNetwork("eip155:8453"))
	assert.False(t, req.AcceptsNetwork("eip155:1"))
	var nilReq *PaymentRequired
	assert.False(t, nilReq.AcceptsNetwork("eip155:8453"))
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		atomic uint64
		want   string
	}{
		{10000, "$0.01"},
		{5000, "$0.005"},
		{20000, "$0.02"},
		{1_000_000, "$1.00"},
		{1_500_000, "$1.50"},
		{0, "$0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(tt.atomic))
	}
}

func TestMaxAmountRequiredIsAtomicString(t *testing.T) {
	b := &Builder{PayTo: "0xPAYEE"}
	skill, _ := SkillByID(SkillScreenshot)
	req := b.Build(skill)
	assert.Equal(t, "10000", req.Accepts[0].MaxAmountRequired)
	assert.Equal(t, "$0.01", req.Accepts[0].Price)
}
