// Package presenter maps workflow snapshots, status reports and errors to
// display text. Every function is pure and total: unexpected error values are
// stringified, never dereferenced blindly.
package presenter
