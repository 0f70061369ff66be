// Package media prepares image attachments and uploads them through the chunked
// upload protocol.
//
// An upload is a fixed sequence against a single endpoint:
//
//  1. size check against the configured limit, before any request
//  2. INIT with the total size and media type, returning a media id
//  3. APPEND of the whole payload as segment 0 (multipart/form-data)
//  4. FINALIZE, which may report asynchronous processing
//  5. STATUS polls while processing is pending, bounded by [MaxStatusPolls]
//
// The [Uploader] sends every request through a [Sender], normally the authenticated
// [services.APIClient], so token refresh and request metrics are shared with posting.
package media
