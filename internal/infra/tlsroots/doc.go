// Package tlsroots builds the TLS configurations of the store daemon and
// its clients.
//
// Server side, a Watcher holds the certificate pair and reloads it when
// the files change, so certificates can be rotated without a restart.
// Client side, ClientTLS trusts the system roots plus an optional CA
// file, which covers self-signed daemon certificates.
package tlsroots
