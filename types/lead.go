package types

import "strings"

// LeadRecord is a raw contact record pulled by the fetch stage. It is
// immutable once fetched; downstream stages only read it.
type LeadRecord struct {
	Name     string `json:"name" yaml:"name"`
	JobTitle string `json:"job_title" yaml:"job_title"`
	Company  string `json:"company" yaml:"company"`
	Email    string `json:"email" yaml:"email"`
	UseCase  string `json:"use_case" yaml:"use_case"`
}

// Map returns the record as a flat map suitable for prompt interpolation.
func (l LeadRecord) Map() map[string]any {
	return map[string]any{
		"name":      l.Name,
		"job_title": l.JobTitle,
		"company":   l.Company,
		"email":     l.Email,
		"use_case":  l.UseCase,
	}
}

// PersonalInfo describes the lead as a person.
type PersonalInfo struct {
	Name                   string  `json:"name"`
	JobTitle               string  `json:"job_title"`
	RoleRelevance          int     `json:"role_relevance"`
	ProfessionalBackground *string `json:"professional_background,omitempty"`
}

// Validate checks the record's bound constraints.
func (p *PersonalInfo) Validate() error {
	if p.Name == "" {
		return NewError(ErrSchemaValidation, "personal_info: name is required")
	}
	if p.JobTitle == "" {
		return NewError(ErrSchemaValidation, "personal_info: job_title is required")
	}
	if p.RoleRelevance < 0 || p.RoleRelevance > 10 {
		return NewError(ErrSchemaValidation, "personal_info: role_relevance must be in [0,10]")
	}
	return nil
}

// CompanyInfo describes the company the lead works for.
type CompanyInfo struct {
	CompanyName    string   `json:"company_name"`
	Industry       string   `json:"industry"`
	CompanySize    int      `json:"company_size"`
	Revenue        *float64 `json:"revenue,omitempty"`
	MarketPresence int      `json:"market_presence"`
}

// Validate checks the record's bound constraints.
func (c *CompanyInfo) Validate() error {
	if c.CompanyName == "" {
		return NewError(ErrSchemaValidation, "company_info: company_name is required")
	}
	if c.Industry == "" {
		return NewError(ErrSchemaValidation, "company_info: industry is required")
	}
	if c.CompanySize < 1 {
		return NewError(ErrSchemaValidation, "company_info: company_size must be positive")
	}
	if c.Revenue != nil && *c.Revenue < 0 {
		return NewError(ErrSchemaValidation, "company_info: revenue must be non-negative")
	}
	if c.MarketPresence < 0 || c.MarketPresence > 10 {
		return NewError(ErrSchemaValidation, "company_info: market_presence must be in [0,10]")
	}
	return nil
}

// LeadScore is the final qualification verdict for a lead.
type LeadScore struct {
	Score           int      `json:"score"`
	ScoringCriteria []string `json:"scoring_criteria"`
	ValidationNotes *string  `json:"validation_notes,omitempty"`
}

// Validate checks the record's bound constraints.
func (s *LeadScore) Validate() error {
	if s.Score < 0 || s.Score > 100 {
		return NewError(ErrSchemaValidation, "lead_score: score must be in [0,100]")
	}
	if len(s.ScoringCriteria) == 0 {
		return NewError(ErrSchemaValidation, "lead_score: scoring_criteria must not be empty")
	}
	return nil
}

// ScoredLead aggregates the enrichment results for one lead. All three
// sub-records must validate; an incomplete aggregate is an error for that
// item, never a partial result.
type ScoredLead struct {
	PersonalInfo PersonalInfo `json:"personal_info"`
	CompanyInfo  CompanyInfo  `json:"company_info"`
	LeadScore    LeadScore    `json:"lead_score"`
}

// Validate checks all three sub-records.
func (s *ScoredLead) Validate() error {
	if err := s.PersonalInfo.Validate(); err != nil {
		return err
	}
	if err := s.CompanyInfo.Validate(); err != nil {
		return err
	}
	return s.LeadScore.Validate()
}

// Map returns the aggregate as a flat map suitable for prompt interpolation.
func (s *ScoredLead) Map() map[string]any {
	background := ""
	if s.PersonalInfo.ProfessionalBackground != nil {
		background = *s.PersonalInfo.ProfessionalBackground
	}
	return map[string]any{
		"name":             s.PersonalInfo.Name,
		"job_title":        s.PersonalInfo.JobTitle,
		"background":       background,
		"company":          s.CompanyInfo.CompanyName,
		"industry":         s.CompanyInfo.Industry,
		"score":            s.LeadScore.Score,
		"scoring_criteria": strings.Join(s.LeadScore.ScoringCriteria, "; "),
	}
}

// EmailDraft is the drafted outreach email for one scored lead.
// The body is free-form text; no schema constraints apply.
type EmailDraft struct {
	LeadName string `json:"lead_name"`
	To       string `json:"to,omitempty"`
	Body     string `json:"body"`
}
