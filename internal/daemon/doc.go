// Package daemon ties the HTTP server, the subscription reconciler,
// and the expiry purge loop into a single lifecycle with flock-based
// locking to prevent multiple instances sharing one database.
package daemon
