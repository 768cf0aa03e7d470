// Package rpctest provides an in-process RPC loopback so lock, extent,
// and paxos unit tests can exercise real net/rpc wire encoding without
// opening real sockets. Grounded on the teacher's practice of shipping
// a dedicated testing sub-package with in-memory fakes alongside each
// store (pkg/cache/testing, pkg/store/content/cache/testing).
package rpctest

import (
	"net"
	"net/rpc"
)

// Pair is a connected client/server pair backed by net.Pipe, with the
// server already serving the pipe's remote end in a background
// goroutine.
type Pair struct {
	Client *rpc.Client
	server *rpc.Server
	conn   net.Conn
}

// NewPair registers receiver under name on a fresh in-memory server and
// returns a client already connected to it.
func NewPair(name string, receiver any) (*Pair, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(name, receiver); err != nil {
		return nil, err
	}

	clientConn, serverConn := net.Pipe()
	go server.ServeConn(serverConn)

	return &Pair{
		Client: rpc.NewClient(clientConn),
		server: server,
		conn:   clientConn,
	}, nil
}

// Register adds another receiver to the same in-memory server (useful
// when a single node exposes more than one service, e.g. a lock
// server that is also a Paxos acceptor).
func (p *Pair) Register(name string, receiver any) error {
	return p.server.RegisterName(name, receiver)
}

// Close shuts down the client side of the pipe.
func (p *Pair) Close() error {
	return p.Client.Close()
}
