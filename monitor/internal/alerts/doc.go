// Package alerts raises alerts when a finished reading falls outside the
// ranges configured as rules, and delivers them to Slack, Teams or generic
// HTTP webhooks. Rules are evaluated per measurement kind; an alert resolves
// when the next reading of the same kind no longer matches.
package alerts
