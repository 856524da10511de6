// Package version holds the daemon version string.
package version

// Version contains the NAPI version number.
var Version = "2.4.0"

// UserAgent contains a string suitable as a user-agent.
var UserAgent = "NAPI " + Version
