// Package resolver expands a source URL into the individual video entries
// it contains. A single video resolves to one entry; a playlist or channel
// resolves to one entry per video.
//
// The production implementation shells out to yt-dlp in flat-playlist mode
// and streams entries as the subprocess emits them, so very large playlists
// never need to be held in memory at once. Consumers read entries through
// the Stream interface and must Close the stream when done, whether or not
// they drained it.
package resolver
