// Package state persists engine resume state across process restarts: the
// bundle's Resume/ResumeCommandLine/registration-type triple ordinarily
// kept under its uninstall registry key, its log path history, and cached
// related-bundle discovery records. It is backed by SQLite with WAL mode
// so the unelevated engine and the elevated companion can share resume
// state through one database file instead of duplicating registry round-trips
// across the privilege boundary.
package state
