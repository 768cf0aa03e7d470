package fsops

import "github.com/coldfront/dfs/internal/dfserr"

// errTooManyCollisions is returned by newInum if every pick in
// maxInumAttempts was already in use at the extent server.
var errTooManyCollisions = dfserr.New(dfserr.IOERR, "exhausted inum attempts")
