package extentstore

import "github.com/coldfront/dfs/internal/dfserr"

// Wire types for the Extent RPC service (spec.md §6).

// GetArgs requests an extent's bytes.
type GetArgs struct {
	ID uint64
}

// GetReply carries the status and, on OK, the extent's bytes.
type GetReply struct {
	Status dfserr.Code
	Bytes  []byte
}

// GetAttrArgs requests an extent's attribute record.
type GetAttrArgs struct {
	ID uint64
}

// GetAttrReply carries the status and, on OK, the attribute record.
type GetAttrReply struct {
	Status dfserr.Code
	Attr   Attr
}

// PutArgs writes an extent's full byte contents.
type PutArgs struct {
	ID    uint64
	Bytes []byte
}

// PutReply carries the result status.
type PutReply struct {
	Status dfserr.Code
}

// RemoveArgs deletes an extent.
type RemoveArgs struct {
	ID uint64
}

// RemoveReply carries the result status.
type RemoveReply struct {
	Status dfserr.Code
}

// CheckArgs probes whether an extent id is already in use.
type CheckArgs struct {
	ID uint64
}

// CheckReply carries the result status and existence flag.
type CheckReply struct {
	Status dfserr.Code
	Exists bool
}
