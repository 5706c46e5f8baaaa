// Package dedupe rejects repeated form submissions. Each message send
// carries a client nonce; the first claim of a nonce wins and later claims
// within the TTL are treated as duplicates.
package dedupe
