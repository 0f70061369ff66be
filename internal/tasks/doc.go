// Package tasks posts draft threads with real-time progress reporting.
//
// # Posting
//
// [Composer.Post] walks the items of a [models.Thread] that have content, in order:
//
//  1. every attachment of the item is uploaded, one at a time, and its media id recorded
//  2. the item is posted with those media ids, replying to the previous post
//  3. the item is marked posted and a [models.PublishedPost] is appended to the history
//
// A thread with more than one content item gets a thread group id shared by all of its
// published posts; the position of each post is its index among the content items.
// A single post is never grouped.
//
// # Failure and Retry
//
// Any error stops the run. The thread becomes failed with the error message stored,
// items in flight become failed, posted items stay posted and progress drops to 0.
//
// [Composer.Retry] only accepts failed threads. It clears uploaded media ids and
// resumes: items already posted are skipped and the chain continues from the last
// of them, so nothing is published twice.
//
// # Progress Reporting
//
// A work unit is one attachment upload or one item post. The [ProgressUpdate] struct carries
// phase, step counters and a message. Updates use select with default to prevent blocking,
// and the latest fraction is available from [Composer.Progress].
package tasks
