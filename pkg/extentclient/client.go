// Package extentclient implements the extent RPC stub (a thin typed
// wrapper over pkg/rpc) and the write-back cache described in
// spec.md §4.3, grounded on the teacher's cache package
// (pkg/cache/state.go, pkg/cache/read.go, pkg/cache/write.go,
// pkg/cache/flush.go) adapted from slice-addressed NFS write caching
// to whole-extent byte-array caching.
package extentclient

import (
	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/extentstore"
	"github.com/coldfront/dfs/pkg/rpc"
)

// RPC is the minimal interface extentclient needs from a transport;
// satisfied by *rpc.Client and by an in-process rpctest.Pair's client
// for tests.
type RPC interface {
	Call(serviceMethod string, args, reply any) error
}

// Client is the extent RPC stub: one method per wire call in
// spec.md §6's Extent service row.
type Client struct {
	rpc RPC
}

// New wraps an already-connected RPC transport.
func New(transport RPC) *Client {
	return &Client{rpc: transport}
}

// Dial connects to an extent server at addr.
func Dial(addr string) (*Client, error) {
	c, err := rpc.Dial(addr)
	if err != nil {
		return nil, err
	}
	return New(c), nil
}

func method(name string) string {
	return extentstore.ServiceName + "." + name
}

func (c *Client) get(id uint64) ([]byte, error) {
	args := &extentstore.GetArgs{ID: id}
	reply := &extentstore.GetReply{}
	if err := c.rpc.Call(method("Get"), args, reply); err != nil {
		return nil, dfserr.New(dfserr.RPCERR, err.Error())
	}
	if reply.Status != dfserr.OK {
		return nil, dfserr.New(reply.Status, "get")
	}
	return reply.Bytes, nil
}

func (c *Client) getAttr(id uint64) (extentstore.Attr, error) {
	args := &extentstore.GetAttrArgs{ID: id}
	reply := &extentstore.GetAttrReply{}
	if err := c.rpc.Call(method("GetAttr"), args, reply); err != nil {
		return extentstore.Attr{}, dfserr.New(dfserr.RPCERR, err.Error())
	}
	if reply.Status != dfserr.OK {
		return extentstore.Attr{}, dfserr.New(reply.Status, "getattr")
	}
	return reply.Attr, nil
}

func (c *Client) put(id uint64, data []byte) error {
	args := &extentstore.PutArgs{ID: id, Bytes: data}
	reply := &extentstore.PutReply{}
	if err := c.rpc.Call(method("Put"), args, reply); err != nil {
		return dfserr.New(dfserr.RPCERR, err.Error())
	}
	if reply.Status != dfserr.OK {
		return dfserr.New(reply.Status, "put")
	}
	return nil
}

func (c *Client) remove(id uint64) error {
	args := &extentstore.RemoveArgs{ID: id}
	reply := &extentstore.RemoveReply{}
	if err := c.rpc.Call(method("Remove"), args, reply); err != nil {
		return dfserr.New(dfserr.RPCERR, err.Error())
	}
	if reply.Status != dfserr.OK {
		return dfserr.New(reply.Status, "remove")
	}
	return nil
}

// Check reports whether id is already in use at the extent server,
// used by the filesystem layer to re-pick a freshly generated inum.
func (c *Client) Check(id uint64) (bool, error) {
	args := &extentstore.CheckArgs{ID: id}
	reply := &extentstore.CheckReply{}
	if err := c.rpc.Call(method("Check"), args, reply); err != nil {
		return false, dfserr.New(dfserr.RPCERR, err.Error())
	}
	if reply.Status != dfserr.OK {
		return false, dfserr.New(reply.Status, "check")
	}
	return reply.Exists, nil
}
