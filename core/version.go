package core

// Version is the library version, surfaced to the remote service through
// the User-Agent header.
const Version = "0.1.0"
