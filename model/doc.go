// Package model defines the provider-agnostic generation interface used by
// workflow nodes, a resolver that maps node configuration to concrete
// providers, and a deterministic mock for tests. Provider adapters live in
// the openai and anthropic subpackages.
package model
