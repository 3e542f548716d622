// Package pipeline assembles the lead qualification flow: fetch leads, score
// each one with the enrichment crew, store and filter the scores, then draft
// and send outreach emails for the leads that qualify.
//
// The stage graph mirrors the sales process:
//
//	fetch_leads -> score_leads -> store_leads_score
//	                           -> filter_leads -> write_email -> send_email
package pipeline
