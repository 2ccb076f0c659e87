// Package incident provides the alert correlation and incident
// lifecycle engine. It defines the Incident aggregate, the
// Fingerprinter (stable correlation keys), the Store interface
// (versioned persistence), the correlation Engine (attach / create /
// reopen decision with optimistic-concurrency retries), the lifecycle
// transition table, and the notification decision rules.
package incident
