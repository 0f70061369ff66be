// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for publishing drafts:
//  1. [DraftListView] : Browse saved threads
//  2. [PreviewView] : Inspect the items of a thread with their weighted lengths
//  3. [ConfirmView] : Confirm posting (or retrying a failed thread)
//  4. [PostingView] : Monitor real-time progress with a progress bar
//  5. [ResultView] : Display the published links or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.PostEngine], providing non-blocking status reporting while posting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
