// Package session drives one measurement at a time through collection and
// inference.
//
// A Session owns the only mutable measurement state. Phases move
//
//	idle -> collecting -> inferring -> complete | failed
//	collecting | inferring -> cancelled (Cancel)
//	complete | failed | cancelled -> idle (ResetCurrent)
//
// and a new Start is accepted from any phase that is not collecting or
// inferring. While collecting, a ticker raises Progress by a fixed step up to
// a cap below 100; it is stopped and joined before the phase changes again.
// Successful records are prepended to a store.History. Failures and
// cancellations never add to history.
package session
