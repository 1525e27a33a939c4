// Package api implements the REST API over the measurement session.
//
// Routes:
//
//	GET    /api/v1/health
//	POST   /api/v1/measurements          start (202), or ?wait=true to block (201)
//	POST   /api/v1/measurements/cancel
//	POST   /api/v1/measurements/reset
//	GET    /api/v1/state                 phase, progress, current result, hints
//	GET    /api/v1/history               ?since=today|week|month|year|all&limit=n
//	DELETE /api/v1/history
//	GET    /api/v1/alerts
//
// Session errors map to status codes with StatusCode.
package api
