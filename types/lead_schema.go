package types

// Declared output schemas for the structured records. These act as contracts
// between the scoring crew's sink task and the rest of the pipeline.

// PersonalInfoSchema describes the personal_info sub-record.
func PersonalInfoSchema() *JSONSchema {
	return NewObjectSchema().
		WithTitle("PersonalInfo").
		AddProperty("name", NewStringSchema().WithMinLength(1)).
		AddProperty("job_title", NewStringSchema().WithMinLength(1)).
		AddProperty("role_relevance", NewIntegerSchema().WithRange(0, 10)).
		AddProperty("professional_background", NewStringSchema()).
		AddRequired("name", "job_title", "role_relevance")
}

// CompanyInfoSchema describes the company_info sub-record.
func CompanyInfoSchema() *JSONSchema {
	return NewObjectSchema().
		WithTitle("CompanyInfo").
		AddProperty("company_name", NewStringSchema().WithMinLength(1)).
		AddProperty("industry", NewStringSchema().WithMinLength(1)).
		AddProperty("company_size", NewIntegerSchema().WithMinimum(1)).
		AddProperty("revenue", NewNumberSchema().WithMinimum(0)).
		AddProperty("market_presence", NewIntegerSchema().WithRange(0, 10)).
		AddRequired("company_name", "industry", "company_size", "market_presence")
}

// LeadScoreSchema describes the lead_score sub-record.
func LeadScoreSchema() *JSONSchema {
	return NewObjectSchema().
		WithTitle("LeadScore").
		AddProperty("score", NewIntegerSchema().WithRange(0, 100)).
		AddProperty("scoring_criteria", NewArraySchema(NewStringSchema()).WithMinItems(1)).
		AddProperty("validation_notes", NewStringSchema()).
		AddRequired("score", "scoring_criteria")
}

// ScoredLeadSchema describes the full enrichment aggregate produced by the
// scoring validation task.
func ScoredLeadSchema() *JSONSchema {
	return NewObjectSchema().
		WithTitle("ScoredLead").
		AddProperty("personal_info", PersonalInfoSchema()).
		AddProperty("company_info", CompanyInfoSchema()).
		AddProperty("lead_score", LeadScoreSchema()).
		AddRequired("personal_info", "company_info", "lead_score")
}
