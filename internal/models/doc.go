// Package models defines the draft and publishing entities for threadx.
//
// Drafts form an ownership tree:
//   - [Thread] : an ordered, non-empty list of items with a lifecycle [Status]
//   - [ThreadItem] : one post body with up to [MaxAttachments] attachments
//   - [Attachment] : full-size and thumbnail image buffers plus the uploaded media id
//
// A thread owns its items and an item owns its attachments. Children refer to their
// parent by id only (ThreadID, ItemID); they never hold a pointer back up the tree.
// Every mutation that adds, removes, or moves children renumbers sort orders so they
// stay a contiguous 0-based sequence.
//
// Status moves editing/ready/failed → posting → posted or failed. [Thread.IsEditable]
// is true in editing, ready, and failed; [Thread.CanPost] additionally requires an
// item with content ([ThreadItem.HasContent]: non-blank text or an attachment).
//
// [PublishedPost] is written once per item that reached the platform. It is not owned
// by a thread: deleting a draft keeps its history. Posts of one thread share a group
// id and carry their 0-based position; a standalone post has no group.
//
// [AuthenticatedUser] describes the signed-in account and is never persisted.
//
// Persistent entities implement [Model] and are stored through [Repository]
// implementations in the repositories package.
package models
