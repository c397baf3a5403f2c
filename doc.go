// Package boardsync keeps a local copy of a shared kanban board in sync with
// the board server.
//
// # Opening a board
//
// [Open] loads the board over the REST API, then subscribes to the board's
// push channel. From then on every change announced by the server is
// decoded and applied to the local snapshot, in the order the server sent
// it. Read the snapshot with [Client.Snapshot] or observe changes with
// [Client.Subscribe].
//
// # Moving cards
//
// [Client.Move] is optimistic: the card moves locally at once, and moves
// back if the server refuses. See [github.com/kanbanlive/boardsync.go/pkg/optimistic].
//
// Every other edit, such as [Client.CreateCard] or [Client.RenameBoard], is
// sent to the server and shows up locally only when the server announces
// it on the push channel.
//
// # Notices
//
// Changes made by anyone, and failures of the local user's edits, are
// published as short lived notices on [Client.Notices].
//
// # Connection
//
// The push channel reconnects on its own with exponential backoff. After a
// reconnect the board is reloaded, since changes may have been missed while
// disconnected. See [github.com/kanbanlive/boardsync.go/pkg/session].
package boardsync
