// Package store holds the measurement history: accepted records, newest
// first, with an optional retention policy applied by a background loop.
package store
