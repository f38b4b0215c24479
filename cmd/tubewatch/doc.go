// Command tubewatch is the operator CLI: it inspects daemon status,
// lists subscriptions, runs single notification or reconcile passes,
// and manages configuration.
package main
