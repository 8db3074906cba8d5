// Package tasks converts playlists between platforms with real-time progress reporting.
//
// # Core Operations
//
// [PlaylistEngine] holds one [services.Service] per configured platform and exposes:
//
//  1. [PlaylistEngine.Resolve] : URL → normalized playlist
//     - Short links are followed by the [services.Resolver]
//     - Metadata and tracks are fetched concurrently under the fetch timeout
//     - Running out of time reports "no playlist found"
//
//  2. [PlaylistEngine.Share] and [PlaylistEngine.Shared] : 24 hour share links
//     - A snapshot of the playlist is stored under a fresh uuid
//     - Expired and unknown ids are both [shared.ErrLinkNotFound]
//
//  3. [PlaylistEngine.Save] : match and write on a target platform
//     - [Convert] runs a [Matcher] over the tracks in concurrent chunks
//     - [Writer] creates the playlist, uploads the cover and inserts refs in sequential chunks
//     - An optional audit repository records counts and status
//
// # Matching
//
// A track is looked up by ISRC first. Any ISRC hit wins. Otherwise the top free-text result
// for title and first artist is taken. Tracks with nothing found are reported as unmatched
// with [shared.ErrNoMatch] and never retried.
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Sends use select with
// default so a slow reader never stalls a conversion.
package tasks
