// Package tools implements the side-effecting capabilities agents may use:
// web search and page scraping. Tools are handed to reasoning capabilities;
// the orchestration core never calls them directly and imposes no ordering
// on their side effects.
package tools
