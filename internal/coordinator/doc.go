// Package coordinator orchestrates token readiness and periodic usage
// fetches against the Mercury API.
//
// One poll cycle runs four steps in order:
//  1. Ensure tokens: load the credential record once from the token store.
//     No refresh token at all is fatal (ErrNoCredentials); a refresh token
//     without an access token triggers a proactive refresh first.
//  2. Compute the query window: one full calendar day, the configured
//     reporting delay behind "now" in the account's time zone.
//  3. Fetch: on a 401 the coordinator refreshes and persists tokens, then
//     retries the fetch exactly once. A second 401 fails the cycle; there
//     is no retry loop.
//  4. Publish: atomically replace the cached snapshot, advance the
//     cumulative daily totals (at most once per measurement date), archive
//     the series, and notify subscribers.
//
// The coordinator is passive between cycles: the serve command's ticker
// drives Poll, and cycles never overlap because the loop is sequential.
// The coordinator is the sole writer of the snapshot and cumulative state;
// the collector, HTTP server and MQTT publisher are read-only consumers.
package coordinator
