// Package state keeps per-chat dialogue sessions in memory.
//
// A session records where a chat is in the conversation, which phrase source the
// send loop should use and the pause bounds chosen by the user. Sessions live only
// for the lifetime of the process.
package state
