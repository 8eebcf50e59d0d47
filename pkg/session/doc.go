/*
Package session implements session management and persistence orchestration.

It serializes read-modify-write cycles on a session with a per-session mutex,
optionally backed by a distributed lock so that several replicas can share
one store.
*/
package session
