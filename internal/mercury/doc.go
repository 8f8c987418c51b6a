// Package mercury implements the two wire contracts of the Mercury NZ
// self-service API: the OAuth2 token endpoint (refresh_token grant) and the
// hourly electricity usage endpoint.
//
// Error taxonomy:
//   - AuthExpiredError: the usage API returned 401. Recoverable via a single
//     refresh-and-retry, which the polling coordinator owns.
//   - RefreshError: the token endpoint returned non-200. Fatal for the cycle.
//   - APIError: any other non-200 from the usage API. Recoverable on the
//     next scheduled cycle.
//
// Neither client retries internally and both are bounded by timeouts: the
// refresh call by a fixed 30 seconds, the usage call by the configured
// API timeout. Payload interpretation beyond status handling lives in the
// derive package.
package mercury
