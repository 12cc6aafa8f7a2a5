// Package resilience wraps every external dependency of the engine with a
// circuit breaker and bounded, jittered retry. The breaker guards against a
// failing dependency being hammered; the retry helper absorbs transient
// network blips inside a single node without surfacing them.
package resilience
