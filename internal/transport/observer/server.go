// Package observer is the loopback-only inspection surface: read-only JSON
// views of hosted runs for local tooling. It never mutates sim state and is
// refused for non-loopback peers.
package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"quantumrogue.dev/internal/protocol"
	"quantumrogue.dev/internal/sim/run"
)

type Server struct {
	registry *run.Registry
}

func NewServer(reg *run.Registry) *Server {
	return &Server{registry: reg}
}

type runsResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	RunIDs          []string `json:"run_ids"`
}

// RunsHandler lists hosted run ids.
func (s *Server) RunsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.guard(rw, r) {
			return
		}
		writeResp(rw, runsResponse{
			ProtocolVersion: protocol.Version,
			RunIDs:          s.registry.IDs(),
		})
	}
}

// StateHandler returns the current STATE view of one run, same shape the
// player transport sends.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.guard(rw, r) {
			return
		}
		id := r.URL.Query().Get("run_id")
		in, ok := s.registry.Get(id)
		if !ok {
			http.Error(rw, protocol.ErrRunNotFound, http.StatusNotFound)
			return
		}
		var state protocol.StateMsg
		if !in.Do(r.Context(), func(rn *run.Run) {
			state = rn.StateMsg(nil)
		}) {
			http.Error(rw, protocol.ErrRunDead, http.StatusGone)
			return
		}
		writeResp(rw, state)
	}
}

type echoesResponse struct {
	ProtocolVersion string                 `json:"protocol_version"`
	RunID           string                 `json:"run_id"`
	Turn            uint64                 `json:"turn"`
	Echoes          []protocol.EchoView    `json:"echoes"`
	Timelines       []timelineSummary      `json:"timelines"`
	History         []protocol.ParadoxView `json:"history,omitempty"`
}

type timelineSummary struct {
	ID       string `json:"id"`
	T0       uint64 `json:"t0"`
	Length   int    `json:"length"`
	Archived bool   `json:"archived"`
}

// EchoesHandler dumps the chronal bookkeeping of one run: live echoes, the
// timeline arena, and the paradox audit trail.
func (s *Server) EchoesHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.guard(rw, r) {
			return
		}
		id := r.URL.Query().Get("run_id")
		in, ok := s.registry.Get(id)
		if !ok {
			http.Error(rw, protocol.ErrRunNotFound, http.StatusNotFound)
			return
		}
		var resp echoesResponse
		if !in.Do(context.Background(), func(rn *run.Run) {
			resp.ProtocolVersion = protocol.Version
			resp.RunID = rn.ID
			resp.Turn = rn.Engine.Turn()
			for _, ec := range rn.Engine.ActiveEchoes() {
				resp.Echoes = append(resp.Echoes, protocol.EchoView{
					ID:         ec.ID,
					TimelineID: string(ec.TimelineID),
					Cursor:     ec.Cursor,
					LogLen:     ec.LogLen,
					State:      ec.State,
					EntityID:   ec.EntityID,
				})
			}
			for _, tl := range rn.Engine.Store().Timelines() {
				resp.Timelines = append(resp.Timelines, timelineSummary{
					ID:       string(tl.ID),
					T0:       tl.Log.T0(),
					Length:   tl.Log.Len(),
					Archived: tl.Archived,
				})
			}
			for _, ev := range rn.Engine.ParadoxHistory() {
				resp.History = append(resp.History, protocol.ParadoxView{
					Seq:        ev.Seq,
					Turn:       ev.Turn,
					EchoID:     ev.EchoID,
					TimelineID: string(ev.TimelineID),
					Reason:     ev.Reason,
					Resolution: ev.Resolution,
					Executed:   string(ev.Executed),
				})
			}
		}) {
			http.Error(rw, protocol.ErrRunDead, http.StatusGone)
			return
		}
		writeResp(rw, resp)
	}
}

func (s *Server) guard(rw http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func writeResp(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
