// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses the locally cached book lists:
//  1. [ListPickerView] : Choose a list (want to read, read)
//  2. [BookListView] : Browse and filter the cached books
//  3. [DetailView] : Show the cached NDL record for one book
//  4. [SyncView] : Monitor a Calil sync in real time
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Progress updates flow through a channel from the [tasks.SyncEngine], so the view never blocks on the network.
//
// [LoginModel] is a standalone spinner shown while an interactive browser login runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
