// Package database provides SQLite-based storage for freezedry.
//
// ArchiveDB stores:
//   - fetched responses, so re-archiving a page (or archiving many pages of
//     one site) does not download shared subresources again
//   - the capture history listed by "freezedry history"
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file in the XDG data directory and the binary cross
// compiles without a C toolchain.
package database
