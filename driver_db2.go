//go:build cgo

package main

// The DB2 driver requires cgo and the IBM clidriver headers, so its
// registration is gated on cgo-enabled builds.
import _ "github.com/ibmdb/go_ibm_db"
