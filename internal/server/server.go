// Package server implements the TCP order-entry listener: it accepts
// connections, decodes internal/wire frames off each one, dispatches them
// into a MatchingEngine, and writes back a wire.Report. Structurally this is
// fenrir/internal/net/server.go plus fenrir/internal/worker.go: a tomb-
// supervised accept loop handing connections to a WorkerPool, with one
// session-handler goroutine serializing engine calls off a shared channel
// instead of each worker touching the engine directly.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"safex/internal/common"
	"safex/internal/wire"
)

const (
	maxRecvSize        = 4 * 1024
	defaultConnTimeout = 5 * time.Second
)

var (
	ErrImproperConversion = errors.New("safex/server: improper task conversion")
	ErrClientGone         = errors.New("safex/server: client session does not exist")
)

// Engine is the narrow surface the order-entry server drives. It mirrors
// engine.MatchingEngine's public signatures closely enough that the real
// type satisfies it without an adapter.
type Engine interface {
	LimitBuy(base, quote common.Token, price common.Price, quoteAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error)
	LimitSell(base, quote common.Token, price common.Price, baseAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error)
	MarketBuy(base, quote common.Token, quoteAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error)
	MarketSell(base, quote common.Token, baseAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error)
	CancelOrder(base, quote common.Token, side common.Side, id common.OrderID, requester common.Address, uid uint64) (*big.Int, error)
}

type clientSession struct {
	conn net.Conn
}

type clientMessage struct {
	addr string
	msg  any
}

// Server is the order-entry TCP listener for one MatchingEngine.
type Server struct {
	address string
	port    int
	engine  Engine
	pool    WorkerPool
	log     zerolog.Logger

	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]clientSession

	inbound chan clientMessage
}

// New constructs a Server bound to engine, listening on address:port with
// nWorkers connection workers.
func New(address string, port int, engine Engine, nWorkers int, logger zerolog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		engine:   engine,
		pool:     NewWorkerPool(nWorkers),
		log:      logger,
		sessions: make(map[string]clientSession),
		inbound:  make(chan clientMessage, 64),
	}
}

// Shutdown cancels the server's run context.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.log.Info().Msg("order-entry server shutting down")
		s.cancel()
	}
}

// Run listens and serves until ctx is canceled. It returns once the accept
// loop, worker pool, and session handler have all stopped.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	s.log.Info().Str("address", s.address).Int("port", s.port).Msg("order-entry server listening")

	for {
		select {
		case <-ctx.Done():
			return t.Wait()
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return t.Wait()
				default:
					s.log.Error().Err(err).Msg("accept failed")
					continue
				}
			}
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.inbound:
			s.dispatch(cm)
		}
	}
}

// dispatch runs one decoded wire message against the engine and writes back
// the corresponding wire.Report. This is the single place that calls into
// the engine, so concurrent connections never race on engine entry from the
// server's side (the engine's own mutex enforces the rest).
func (s *Server) dispatch(cm clientMessage) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[cm.addr]
	s.sessionsMu.Unlock()
	if !ok {
		return
	}

	switch m := cm.msg.(type) {
	case *wire.NewOrderMessage:
		s.dispatchOrder(session, m)
	case *wire.CancelOrderMessage:
		s.dispatchCancel(session, m)
	case wire.MessageType:
		// Heartbeat: nothing to do.
	default:
		s.writeError(session, cm.addr, wire.ErrInvalidMessageType)
	}
}

func (s *Server) dispatchOrder(session clientSession, m *wire.NewOrderMessage) {
	var (
		makePrice common.Price
		matched   *big.Int
		placed    *big.Int
		err       error
	)

	switch m.Kind {
	case wire.LimitBuy:
		makePrice, matched, placed, err = s.engine.LimitBuy(m.Base, m.Quote, m.Price, m.Amount, m.IsMaker, int(m.N), m.Sender, m.UID, m.Recipient)
	case wire.LimitSell:
		makePrice, matched, placed, err = s.engine.LimitSell(m.Base, m.Quote, m.Price, m.Amount, m.IsMaker, int(m.N), m.Sender, m.UID, m.Recipient)
	case wire.MarketBuy:
		makePrice, matched, placed, err = s.engine.MarketBuy(m.Base, m.Quote, m.Amount, m.IsMaker, int(m.N), m.Sender, m.UID, m.Recipient)
	case wire.MarketSell:
		makePrice, matched, placed, err = s.engine.MarketSell(m.Base, m.Quote, m.Amount, m.IsMaker, int(m.N), m.Sender, m.UID, m.Recipient)
	default:
		err = wire.ErrInvalidMessageType
	}

	if err != nil {
		s.log.Error().Err(err).Str("requestID", m.RequestID.String()).Msg("order rejected")
		s.writeReport(session, &wire.Report{RequestID: m.RequestID, Kind: wire.ErrorReport, ErrStr: err.Error()})
		return
	}
	s.writeReport(session, &wire.Report{RequestID: m.RequestID, Kind: wire.ExecutionReport, MakePrice: makePrice, Matched: matched, Placed: placed})
}

func (s *Server) dispatchCancel(session clientSession, m *wire.CancelOrderMessage) {
	refunded, err := s.engine.CancelOrder(m.Base, m.Quote, m.Side, m.OrderID, m.Requester, m.UID)
	if err != nil {
		s.log.Error().Err(err).Str("requestID", m.RequestID.String()).Msg("cancel rejected")
		s.writeReport(session, &wire.Report{RequestID: m.RequestID, Kind: wire.ErrorReport, ErrStr: err.Error()})
		return
	}
	s.writeReport(session, &wire.Report{RequestID: m.RequestID, Kind: wire.ExecutionReport, Matched: refunded})
}

func (s *Server) writeReport(session clientSession, r *wire.Report) {
	if _, err := session.conn.Write(r.Serialize()); err != nil {
		s.log.Error().Err(err).Msg("failed writing report")
	}
}

func (s *Server) writeError(session clientSession, addr string, err error) {
	s.writeReport(session, &wire.Report{Kind: wire.ErrorReport, ErrStr: err.Error()})
}

// handleConnection reads one frame off conn, decodes it, and forwards it to
// the session handler, then re-queues the connection for its next frame.
// Any error here is non-fatal to the pool: the connection is simply dropped.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		s.log.Error().Err(err).Msg("failed setting connection deadline")
		s.closeSession(conn)
		return nil
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buf)
		if err != nil {
			s.closeSession(conn)
			return nil
		}

		msg, err := wire.Parse(buf[:n])
		if err != nil {
			s.log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed parsing frame")
			s.closeSession(conn)
			return nil
		}

		s.inbound <- clientMessage{addr: conn.RemoteAddr().String(), msg: msg}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) closeSession(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	s.sessionsMu.Lock()
	delete(s.sessions, addr)
	s.sessionsMu.Unlock()
	conn.Close()
}
