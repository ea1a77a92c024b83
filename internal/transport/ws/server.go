// Package ws is the player transport: one websocket connection drives one
// run. The protocol is strictly request/response after the handshake — the
// client sends CMD, the server answers STATE or ERROR.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"quantumrogue.dev/internal/logging"
	"quantumrogue.dev/internal/protocol"
	"quantumrogue.dev/internal/sim/levels"
	"quantumrogue.dev/internal/sim/run"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 120 * time.Second
	writeTimeout     = 5 * time.Second
)

type Server struct {
	registry *run.Registry
	levels   *levels.Catalog

	upgrader websocket.Upgrader
}

func NewServer(reg *run.Registry, cat *levels.Catalog) *Server {
	return &Server{
		registry: reg,
		levels:   cat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		in := s.handshake(conn)
		if in == nil {
			return
		}
		s.commandLoop(conn, in)
	}
}

// handshake consumes exactly one HELLO and answers WELCOME plus the current
// STATE. A nil return means the connection is already dead or rejected.
func (s *Server) handshake(conn *websocket.Conn) *run.Instance {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closePolicy(conn, "malformed HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return nil
	}

	var in *run.Instance
	if token := strings.TrimSpace(hello.ResumeToken); token != "" {
		var ok bool
		if in, ok = s.registry.Resume(token); !ok {
			s.writeError(conn, protocol.ErrRunNotFound, "resume token unknown")
			return nil
		}
	} else {
		levelID := hello.LevelID
		if levelID == "" {
			ids := s.levels.IDs()
			levelID = ids[0]
		}
		seed := hello.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		in, err = s.registry.Create(levelID, seed)
		if err != nil {
			code := protocol.ErrInternal
			if ce, ok := err.(*run.CodeError); ok {
				code = ce.Code
			}
			s.writeError(conn, code, err.Error())
			return nil
		}
	}

	var welcome protocol.WelcomeMsg
	var state protocol.StateMsg
	if !in.Do(context.Background(), func(r *run.Run) {
		welcome = protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			RunID:           r.ID,
			ResumeToken:     in.ResumeToken,
			PlayerID:        run.PlayerID,
			LevelID:         r.LevelID,
			LevelsDigest:    s.levels.Digest,
			Seed:            r.Seed,
			Turn:            r.Engine.Turn(),
			Energy:          r.Engine.Energy(),
			EnergyMax:       r.Tun.Energy.Max,
		}
		state = r.StateMsg(nil)
	}) {
		s.writeError(conn, protocol.ErrRunDead, "run shut down")
		return nil
	}

	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	if err := writeJSON(conn, state); err != nil {
		return nil
	}
	return in
}

func (s *Server) commandLoop(conn *websocket.Conn, in *run.Instance) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.writeError(conn, protocol.ErrProtoBadRequest, "malformed frame")
			continue
		}
		if base.Type != protocol.TypeCmd {
			s.writeError(conn, protocol.ErrProtoBadRequest, "expected CMD")
			continue
		}
		var cm protocol.CmdMsg
		if err := json.Unmarshal(msg, &cm); err != nil {
			s.writeError(conn, protocol.ErrProtoBadRequest, "malformed CMD")
			continue
		}
		if cm.ProtocolVersion != protocol.Version {
			s.writeError(conn, protocol.ErrProtoBadRequest, "bad protocol_version")
			continue
		}

		var state protocol.StateMsg
		var stepErr error
		if !in.Do(context.Background(), func(r *run.Run) {
			res, err := r.Step(run.CommandFromMsg(cm))
			stepErr = err
			if err == nil {
				state = r.StateMsg(res.Events)
			}
		}) {
			s.writeError(conn, protocol.ErrRunDead, "run shut down")
			return
		}

		if stepErr != nil {
			code, msg := protocol.ErrInternal, stepErr.Error()
			if ce, ok := stepErr.(*run.CodeError); ok {
				code, msg = ce.Code, ce.Msg
			}
			s.writeError(conn, code, msg)
			continue
		}
		if err := writeJSON(conn, state); err != nil {
			return
		}
	}
}

func (s *Server) writeError(conn *websocket.Conn, code, msg string) {
	if !protocol.IsKnownCode(code) {
		logging.Log.WithField("code", code).Warn("unknown error code, rewriting")
		code = protocol.ErrInternal
	}
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	})
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
