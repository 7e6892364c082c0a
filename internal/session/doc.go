// Package session tracks active client sessions, each owning one pipeline
// orchestrator, and expires sessions that go idle.
package session
