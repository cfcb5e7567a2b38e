package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/streetgrid/gridnode/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

const (
	HEALTH_TIMEOUT = 10 * time.Second
	STATUS_TIMEOUT = 5 * time.Second
)

// Server is the node's local HTTP surface. Every response names the node and build it came from.
type Server struct {
	port        uint
	httpLog     bool
	nodeId      string
	version     string
	rootContext *actor.RootContext
	masterActor *actor.PID
	logger      *zap.Logger
}

func NewServer(cfg *config.Config, version string, rootContext *actor.RootContext, masterActor *actor.PID,
	logger *zap.Logger) *http.Server {
	s := &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		nodeId:      cfg.NodeId,
		version:     version,
		rootContext: rootContext,
		masterActor: masterActor,
		logger:      logger.With(zap.String("component", "http"), zap.String("node", cfg.NodeId)),
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func (s *Server) serverName() string {
	if s.version == "" {
		return "gridnode"
	}
	return "gridnode/" + s.version
}
