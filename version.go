package anisync

import "github.com/ateliersoft/anisync/core"

// Version is the library version, also used in the default User-Agent.
const Version = core.Version
