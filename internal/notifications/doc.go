// Package notifications pushes render outcomes to ntfy.
//
// The daemon publishes to the topic URL configured under [notifications] and
// degrades to a no-op when no topic is set. Callers depend only on Service.
package notifications
