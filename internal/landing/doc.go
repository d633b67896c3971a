// Package landing implements the ScamShield++ landing page as a per-visitor
// state machine.
//
// A Page collects either an uploaded screenshot or a URL, awaits a
// scanner.Service, then navigates to AnalysisPath with a Handoff describing
// what was scanned. Notifications, navigation and sentinel storage are
// supplied by the host through small interfaces so the page itself never
// touches HTTP, cookies or Redis.
//
//	Idle --SubmitScan/RunDemo--> Scanning --scan done--> Navigated
//	                              |
//	                              +--scan error--> Idle
//
//	Idle, Scanning --Close--> Closed
//
// Navigated and Closed are terminal. Closing a scanning page abandons the
// scan without navigating.
package landing
