package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScoredLead() *ScoredLead {
	return &ScoredLead{
		PersonalInfo: PersonalInfo{
			Name:          "Anne Pernet",
			JobTitle:      "Directrice CRM",
			RoleRelevance: 8,
		},
		CompanyInfo: CompanyInfo{
			CompanyName:    "Veolia Environnement",
			Industry:       "Environmental Services",
			CompanySize:    178000,
			MarketPresence: 9,
		},
		LeadScore: LeadScore{
			Score:           85,
			ScoringCriteria: []string{"role relevance", "company size"},
		},
	}
}

func TestLeadScore_Validate_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		score   int
		wantErr bool
	}{
		{"below lower bound", -1, true},
		{"lower bound", 0, false},
		{"upper bound", 100, false},
		{"above upper bound", 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &LeadScore{Score: tt.score, ScoringCriteria: []string{"fit"}}
			err := s.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrSchemaValidation, GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLeadScore_Validate_EmptyCriteria(t *testing.T) {
	s := &LeadScore{Score: 50}
	err := s.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrSchemaValidation, GetErrorCode(err))
}

func TestPersonalInfo_Validate_RoleRelevance(t *testing.T) {
	p := &PersonalInfo{Name: "Anne", JobTitle: "CRM Director", RoleRelevance: 10}
	assert.NoError(t, p.Validate())

	p.RoleRelevance = 11
	err := p.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrSchemaValidation, GetErrorCode(err))
}

func TestCompanyInfo_Validate(t *testing.T) {
	c := &CompanyInfo{
		CompanyName:    "Veolia",
		Industry:       "Utilities",
		CompanySize:    100,
		MarketPresence: 5,
	}
	require.NoError(t, c.Validate())

	c.CompanySize = 0
	assert.Error(t, c.Validate())
	c.CompanySize = 100

	negative := -1.0
	c.Revenue = &negative
	assert.Error(t, c.Validate())

	revenue := 42_000_000.0
	c.Revenue = &revenue
	assert.NoError(t, c.Validate())
}

func TestScoredLead_Validate_Aggregate(t *testing.T) {
	lead := validScoredLead()
	require.NoError(t, lead.Validate())

	// One invalid sub-record invalidates the whole aggregate.
	lead.CompanyInfo.MarketPresence = 11
	err := lead.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrSchemaValidation, GetErrorCode(err))
}
