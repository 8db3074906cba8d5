// Package models defines domain entities and persistence interfaces for the Playvert conversion service.
//
// The package contains two categories of types:
//
// 1. Value objects: platform-neutral data produced at each adapter boundary
//   - [Platform] : Spotify, Apple Music or Deezer; the integer values are stored in share links
//   - [Track] : Song metadata with ISRC for cross-platform matching and a native [TrackRef]
//   - [Playlist] : Ordered track listing plus title, image and source URL
//   - [SearchQuery] : ISRC, title and artist lookup keys
//
// 2. Persistent records: write-once entities behind [Repository]
//   - [ShareLink] : A normalized playlist stored under an opaque id with a 24 hour TTL
//   - [Conversion] : Audit row for a completed save (counts and status only)
//
// Records are never updated. [LinkStore] adds TTL purging on top of [Repository].
package models
