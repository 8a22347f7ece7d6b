// Package server bridges the controller to the driving simulator over a
// websocket. The simulator connects as a client and streams telemetry
// events; each event gets exactly one synchronous actuation reply.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mpcdrive/internal/config"
	"mpcdrive/internal/mpc"
	"mpcdrive/internal/telemetry"
)

// Server accepts simulator connections and drives one controller per
// connection. Telemetry arrives serialized on a single socket, so no
// locking is needed around the control step.
type Server struct {
	cfg      *config.Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
	observer func(telemetry.Telemetry, mpc.Command)
}

func New(cfg *config.Config, log zerolog.Logger) *Server {
	return &Server{
		cfg: cfg,
		log: log.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The simulator is a local desktop app, not a browser.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Observe registers a hook called after every control cycle.
func (s *Server) Observe(fn func(telemetry.Telemetry, mpc.Command)) {
	s.observer = fn
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("waiting for simulator")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("simulator connected")
	if err := s.serve(conn); err != nil {
		s.log.Info().Err(err).Msg("simulator disconnected")
	}
}

func (s *Server) serve(conn *websocket.Conn) error {
	ctrl := mpc.NewController(s.cfg, s.log)
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		reply, err := s.handle(ctrl, msg)
		if err != nil {
			s.log.Warn().Err(err).Msg("dropping frame")
			continue
		}
		if reply == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			return err
		}
	}
}

func (s *Server) handle(ctrl *mpc.Controller, msg []byte) ([]byte, error) {
	event, payload, err := telemetry.Decode(msg)
	if err != nil {
		if errors.Is(err, telemetry.ErrNotEvent) {
			return nil, nil
		}
		return nil, err
	}
	if event != "telemetry" {
		return telemetry.Manual(), nil
	}
	var tm telemetry.Telemetry
	if err := json.Unmarshal(payload, &tm); err != nil {
		return nil, fmt.Errorf("telemetry payload: %w", err)
	}
	cmd, err := ctrl.Step(mpc.Input{
		WaypointsX: tm.PtsX,
		WaypointsY: tm.PtsY,
		X:          tm.X,
		Y:          tm.Y,
		Psi:        tm.Psi,
		Speed:      tm.Speed,
		PrevSteer:  tm.SteeringAngle,
		PrevThrot:  tm.Throttle,
	})
	if err != nil {
		return nil, fmt.Errorf("control step: %w", err)
	}
	if s.observer != nil {
		s.observer(tm, cmd)
	}
	// The plant acts on the previous command for one latency interval;
	// holding the reply back for that long keeps the compensation honest.
	if s.cfg.Latency > 0 {
		time.Sleep(time.Duration(s.cfg.Latency * float64(time.Second)))
	}
	return telemetry.Encode("steer", telemetry.Command{
		SteeringAngle: cmd.Steer,
		Throttle:      cmd.Throttle,
		NextX:         xs(cmd.Reference),
		NextY:         ys(cmd.Reference),
		MpcX:          xs(cmd.Predicted),
		MpcY:          ys(cmd.Predicted),
	})
}

func xs(pts []mpc.Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.X
	}
	return out
}

func ys(pts []mpc.Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Y
	}
	return out
}
