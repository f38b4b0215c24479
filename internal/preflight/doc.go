// Package preflight runs startup readiness checks: directory access,
// free disk space for the database, and webhook reachability.
package preflight
