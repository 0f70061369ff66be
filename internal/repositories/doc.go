// Package repositories implements SQLite persistence for drafts and publish history.
//
// Key Implementations:
//   - [ThreadRepository] : drafts with their items and attachments, replaced as a unit on update
//   - [PublishedPostRepository] : append-only history of posts that reached the platform
//
// Thread sequence numbers provide stable, human-readable ordering (e.g. thread #3) independent of UUIDs.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// Deleting a thread removes its attachments and items explicitly before the thread row.
// Published posts are never touched by thread deletion.
package repositories
