package extentstore

import (
	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/logger"
)

// Server exposes a Store over net/rpc as the "Extent" service
// (spec.md §6: get, getattr, put, remove, check). Method signatures
// follow net/rpc's convention so Server can be registered directly
// with a *rpc.Server via Server.Register(server.ServiceName, srv).
type Server struct {
	store *Store
}

// ServiceName is the net/rpc service name registered for this server.
const ServiceName = "Extent"

// NewServer wraps store as an RPC-reachable extent server.
func NewServer(store *Store) *Server {
	return &Server{store: store}
}

// Get implements the "get" RPC.
func (s *Server) Get(args *GetArgs, reply *GetReply) error {
	data, err := s.store.Get(args.ID)
	if err != nil {
		reply.Status = dfserr.CodeOf(err)
		logger.Debug("extent get miss", logger.KeyExtentID, hexID(args.ID), logger.KeyResult, reply.Status.String())
		return nil
	}
	reply.Status = dfserr.OK
	reply.Bytes = data
	return nil
}

// GetAttr implements the "getattr" RPC.
func (s *Server) GetAttr(args *GetAttrArgs, reply *GetAttrReply) error {
	attr, err := s.store.GetAttr(args.ID)
	if err != nil {
		reply.Status = dfserr.CodeOf(err)
		return nil
	}
	reply.Status = dfserr.OK
	reply.Attr = attr
	return nil
}

// Put implements the "put" RPC.
func (s *Server) Put(args *PutArgs, reply *PutReply) error {
	if err := s.store.Put(args.ID, args.Bytes); err != nil {
		reply.Status = dfserr.CodeOf(err)
		return nil
	}
	reply.Status = dfserr.OK
	logger.Debug("extent put", logger.KeyExtentID, hexID(args.ID), logger.KeySize, len(args.Bytes))
	return nil
}

// Remove implements the "remove" RPC.
func (s *Server) Remove(args *RemoveArgs, reply *RemoveReply) error {
	if err := s.store.Remove(args.ID); err != nil {
		reply.Status = dfserr.CodeOf(err)
		return nil
	}
	reply.Status = dfserr.OK
	return nil
}

// Check implements the "check" RPC, used by the filesystem layer to
// re-pick a freshly generated inum on collision.
func (s *Server) Check(args *CheckArgs, reply *CheckReply) error {
	exists, err := s.store.Check(args.ID)
	if err != nil {
		reply.Status = dfserr.CodeOf(err)
		return nil
	}
	reply.Status = dfserr.OK
	reply.Exists = exists
	return nil
}
