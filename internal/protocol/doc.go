// Package protocol implements the Spykee wire protocol: 5-byte frame headers
// with the 'P','K' magic prefix, outgoing command payload construction, and
// login response parsing. It is pure encoding and decoding with no I/O.
package protocol
