// Package browser owns the single automated Chrome process used to log in to the holds service.
//
// # Lifecycle
//
// The [Manager] moves its handle through Absent → Launching → Ready, drops to Disconnected when a liveness
// round trip fails, and relaunches on the next request. [Manager.Close] moves it to Exiting for good.
//
// Concurrent requests for a browser share one launch. A launch tries, in order:
//   - reconnecting to the control URL saved in the endpoint file by an earlier process
//   - starting a new process with the first executable that resolves (configured path, system
//     install, managed download)
//
// New processes get a persistent profile directory, leakless disabled so they outlive bookx,
// and flags that hide automation from the page.
//
// # Login
//
// [Manager.Login] drives one page through the login flow and waits, bounded by the login timeout,
// for the page to come back to the apex host outside the login path. Cookies for the apex domain and
// the auth host are returned as a [vault.Session]. Only the page is closed; the browser stays up for the
// next login.
package browser
