package server

import (
	"go.uber.org/zap"

	internalserver "github.com/SmitUplenchwar2687/rewind/internal/server"
	"github.com/SmitUplenchwar2687/rewind/pkg/clock"
	"github.com/SmitUplenchwar2687/rewind/pkg/storage"
)

// Server exposes the session catalogue and streams replays.
type Server = internalserver.Server

// Options configures a Server.
type Options = internalserver.Options

// Hub manages WebSocket clients.
type Hub = internalserver.Hub

// Message is the envelope sent to websocket clients.
type Message = internalserver.Message

// New creates a server over store. clk and log may be nil.
func New(opts Options, store storage.Store, clk clock.Clock, log *zap.Logger) *Server {
	return internalserver.New(opts, store, clk, log)
}
