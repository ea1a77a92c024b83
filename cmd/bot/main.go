// The bot binary is a scripted smoke client: it connects, plays random legal
// commands for a while, rewinds an echo when it can afford one, and prints
// what comes back. Useful for soaking the server without a real player.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"quantumrogue.dev/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "player name")
		level = flag.String("level", "", "level id (server default when empty)")
		seed  = flag.Int64("seed", 0, "run seed (server picks when 0)")
		turns = flag.Int("turns", 200, "turns to play before exiting")
		delay = flag.Duration("delay", 100*time.Millisecond, "pause between commands")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		LevelID:         *level,
		Seed:            *seed,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	if err := readExpect(conn, protocol.TypeWelcome, &welcome); err != nil {
		logger.Fatalf("WELCOME: %v", err)
	}
	logger.Printf("WELCOME run=%s level=%s seed=%d energy=%d", welcome.RunID, welcome.LevelID, welcome.Seed, welcome.Energy)

	var state protocol.StateMsg
	if err := readExpect(conn, protocol.TypeState, &state); err != nil {
		logger.Fatalf("initial STATE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	spawnedEcho := false

	for i := 0; i < *turns; i++ {
		select {
		case <-stop:
			return
		default:
		}

		cmd := pickCommand(rng, &state, &spawnedEcho)
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Fatalf("send CMD: %v", err)
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeState:
			if err := json.Unmarshal(msg, &state); err != nil {
				continue
			}
			for _, ev := range state.Events {
				logger.Printf("paradox turn=%d echo=%s reason=%q resolution=%s", ev.Turn, ev.EchoID, ev.Reason, ev.Resolution)
			}
		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err != nil {
				continue
			}
			logger.Printf("rejected %s: %s (%s)", cmd.Cmd, em.Code, em.Message)
		}

		time.Sleep(*delay)
	}
	logger.Printf("done: turn=%d energy=%d echoes=%d", state.Turn, state.Energy, len(state.Echoes))
}

func pickCommand(rng *rand.Rand, state *protocol.StateMsg, spawnedEcho *bool) protocol.CmdMsg {
	cmd := protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
	}

	// One rewind per session, once there is a timeline worth replaying.
	if !*spawnedEcho && state.Turn > 10 && state.Energy > 15 {
		*spawnedEcho = true
		cmd.Cmd = protocol.CmdRewind
		cmd.TimelineID = "T001"
		cmd.Offset = 0
		return cmd
	}

	// Attack an adjacent hostile if there is one.
	for _, e := range state.Entities {
		if !e.Hostile || e.HP <= 0 {
			continue
		}
		if abs(e.X-state.Player.X)+abs(e.Y-state.Player.Y) == 1 {
			cmd.Cmd = protocol.CmdAttack
			cmd.TargetID = e.ID
			return cmd
		}
	}

	// Otherwise wander.
	dirs := [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	d := dirs[rng.Intn(len(dirs))]
	cmd.Cmd = protocol.CmdMove
	cmd.DX, cmd.DY = d[0], d[1]
	return cmd
}

func readExpect(conn *websocket.Conn, wantType string, v any) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		if base.Type != wantType {
			continue
		}
		return json.Unmarshal(msg, v)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
