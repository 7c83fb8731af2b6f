// Package config defines the celerix-stored configuration.
//
// Values come from defaults, a YAML file, CELERIX_* environment
// variables and flags, merged by confloader. Keys are dotted paths
// without underscores so that CELERIX_SERVER_TLS_CERT maps to
// server.tls.cert.
package config
