// Package agent models the reasoning capability the orchestration core
// delegates to. An Agent binds a role description to an Invoker, the narrow
// interface behind which natural-language generation lives. The core never
// inspects how an Invoker produces text; it only parses and validates what
// comes back.
package agent
