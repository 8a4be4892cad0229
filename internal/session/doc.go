// package session keeps an authenticated Calil session and access token available to upstream calls.
//
// [Ensurer] is the only path to a login. [TokenCache] mints access tokens for the current cookie.
// [Do] wraps an upstream call and retries it once after refreshing whatever expired.
package session
