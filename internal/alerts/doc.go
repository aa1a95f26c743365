// Package alerts implements the threshold rule engine that watches scored
// candidates and delivers webhook notifications (Slack, Teams, generic HTTP)
// when a rule fires or resolves. Per-package cooldowns suppress repeat fires.
package alerts
