package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/domain"
	"github.com/vitos/trade_signal_engine/internal/usecase"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	engine    *usecase.Engine
	tradeRepo domain.TradeRepository
	logger    *zap.Logger
}

func NewServer(
	port int,
	engine *usecase.Engine,
	tradeRepo domain.TradeRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		engine:    engine,
		tradeRepo: tradeRepo,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Accounts
	s.router.HandleFunc("GET /api/accounts", s.handleListAccounts)
	s.router.HandleFunc("GET /api/accounts/{instrument}", s.handleAccount)
	s.router.HandleFunc("POST /api/accounts/{instrument}/reset", s.handleResetAccount)

	// Trades
	s.router.HandleFunc("GET /api/trades/{instrument}", s.handleListTrades)

	// Signals and levels
	s.router.HandleFunc("GET /api/signal/{instrument}", s.handleSignal)
	s.router.HandleFunc("GET /api/levels/{instrument}", s.handleLevels)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
