// Package types defines the shared data model for leadflow: the lead
// records exchanged between pipeline stages, the JSON-schema model used to
// validate structured agent output, and the framework-wide error type.
package types
