// Package repositories implements persistence for share links and conversion records.
//
// Two interchangeable [models.LinkStore] implementations exist, picked by database.driver:
//   - [LinkRepository] : SQLite table playlist_links, created by the embedded migrations
//   - [BoltStore] : a bbolt file with one bucket per record type
//
// Both treat a link as gone once its TTL passes, even before [models.LinkStore.PurgeExpired]
// deletes it. Records are write-once.
//
// [ConversionRepository] and [BoltConversions] keep the audit trail of saves: counts,
// platforms and the upstream status. Track ids are never stored.
package repositories
