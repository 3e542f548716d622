// Package llm provides an OpenAI-compatible chat-completions client that
// implements agent.Invoker. It is deliberately thin: one model, one
// endpoint, no routing or streaming. Anything that can speak the
// chat-completions wire format (OpenAI, OpenRouter, DeepSeek, local
// gateways) works as the reasoning capability behind the pipeline.
package llm
