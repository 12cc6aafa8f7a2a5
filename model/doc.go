// Package model abstracts language-model invocation behind a minimal
// interface with synchronous and token-streaming variants. Implementations
// are swappable per node so each graph role can run its own model,
// temperature and token budget. Provider adapters live in the anthropic and
// openai subpackages; MockModel serves tests and examples.
package model
