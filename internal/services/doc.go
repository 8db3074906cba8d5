// Package services defines the [Service] interface for streaming platforms and implements it for Spotify, Apple Music and Deezer.
//
// # Service Interface
//
// Every adapter normalizes platform JSON into [models.Playlist] and [models.Track] at its boundary.
// Platform response types never leave this package.
//
// Optional capabilities are separate interfaces. [CoverUploader] is implemented by [SpotifyService] only.
//
// # Request Gate
//
// Each platform gets one [Gate] at startup. The gate is the transport of the adapter's [http.Client],
// so every call to that platform (including OAuth token requests) goes through a single FIFO queue
// spaced by 1s / rate_limit.
//
// # Authentication
//
//   - Spotify: reads use the user token when present, otherwise a client credentials app token.
//     User tokens are refreshed through [oauth2.ReuseTokenSourceWithExpiry] a minute before expiry.
//   - Apple Music: the developer token on every call, plus Music-User-Token for library writes
//   - Deezer: reads are public, writes send access_token
//
// User tokens travel in the request context ([WithUserToken]).
//
// # Error Handling
//
// Non-2xx responses become [shared.UpstreamError], which matches:
//   - [shared.ErrAPIRequest] : always
//   - [shared.ErrNotAuthenticated] : 401/403, or a write without a user token
//   - [shared.ErrPlaylistNotFound] : 404 on a playlist lookup (Deezer: in-body error code 800)
//
// # URLs
//
// [ParsePlaylistURL] detects the platform and id. Deezer short links are followed by a [Resolver]
// first; it reads og:url or the canonical link when the redirect lands on an HTML interstitial.
package services
