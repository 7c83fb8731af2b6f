// Command celerix-stored serves a celerix store over TCP.
//
// Configuration is read from an optional YAML file (-config), CELERIX_*
// environment variables and flags, in increasing priority. The log
// level is reloaded when the file changes.
//
//	celerix-stored -config /etc/celerix/stored.yaml
//	CELERIX_PORT=7001 CELERIX_DATA_DIR=/var/lib/celerix celerix-stored
package main
