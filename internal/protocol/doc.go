// Package protocol owns the companion wire contract.
//
// Ownership boundary:
// - wire keys and enumerated kinds (request, data, feature, state, error)
// - key/value dictionaries and typed field accessors
// - request encoding and response decoding for both link ends
// - per-marker field schemas
package protocol
