// Package vault persists the upstream session cookies and decides, by probing the live site, whether they still work.
//
// # Storage
//
// The session lives in a single JSON document:
//
//	{"cookies": [{"name": ..., "value": ..., "domain": ..., "path": ..., "expires": ..., "httpOnly": ..., "secure": ...}], "savedAt": 1718000000000}
//
// [Vault.Save] replaces the whole document through a temp file and rename, so concurrent saves end with one
// complete document (last write wins). [Vault.Load] treats a missing or corrupt file as "no session".
//
// # Probing
//
// A session is never trusted from its fields alone. [Vault.IsValid] sends each cookie, newest expiry first,
// to the site root and accepts the first one answered with 200. The surviving cookie is saved as the new,
// minimal session. Redirects and transport errors count as failures.
package vault
