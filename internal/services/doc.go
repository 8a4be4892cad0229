// Package services implements the upstream HTTP clients.
//
// # Calil
//
// [CalilService] calls the token and list endpoints. Requests carry the session cookie and, for data
// endpoints, an access token set with [oauth2.Token.SetAuthHeader]. Redirects are not followed.
//
// [ListFetcher] is what the rest of the application uses: each call runs through [session.Do], so an
// expired token or session is refreshed and the call retried once.
//
// # National Diet Library
//
// [NDLService] queries the OpenSearch endpoint and parses the RSS response with goquery.
// Lookups and thumbnail downloads share a [rate.Limiter].
//
// # Error Handling
//
// Status codes map onto shared sentinels:
//   - [shared.ErrSessionExpired] : redirect from any endpoint, 401/403 from the token endpoint
//   - [shared.ErrTokenExpired] : 401/403 from a data endpoint
//   - [shared.ErrServiceUnavailable] : 5xx
//   - [shared.ErrBookNotFound] : no NDL record, or 404
//   - [shared.ErrAPIRequest] : transport failures and anything else
package services
