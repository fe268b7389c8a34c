package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// frame mirrors the server's {"type","data"} envelope.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type view struct {
	Version           uint64         `json:"version"`
	Phase             string         `json:"phase"`
	CurrentRound      int            `json:"current_round"`
	TotalRounds       int            `json:"total_rounds"`
	TimeDisplay       string         `json:"time_display"`
	CurrentTurnUserID string         `json:"current_turn_user_id"`
	Scores            map[string]int `json:"participant_scores"`
	BattleEnded       bool           `json:"battle_ended"`
	ShowRoundSummary  bool           `json:"show_round_summary"`
	IsSpectator       bool           `json:"is_spectator"`
	IsPlayerTurn      bool           `json:"is_player_turn"`
	CanVote           bool           `json:"can_vote"`
	UserVote          string         `json:"user_vote"`
	Winner            *struct {
		UserID string `json:"user_id"`
		Score  int    `json:"score"`
	} `json:"winner"`
}

// send marshals payload into a frame and writes it.
func send(c *websocket.Conn, frameType string, payload interface{}) error {
	f := frame{Type: frameType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		f.Data = data
	}
	return c.WriteJSON(f)
}

func printFrame(f frame) {
	switch f.Type {
	case "snapshot":
		var v view
		if err := json.Unmarshal(f.Data, &v); err != nil {
			log.Printf("<- bad snapshot: %v", err)
			return
		}
		role := "participant"
		if v.IsSpectator {
			role = "spectator"
		}
		log.Printf("<- v%d %s round %d/%d turn=%s %s [%s] scores=%v",
			v.Version, v.Phase, v.CurrentRound, v.TotalRounds, v.CurrentTurnUserID, v.TimeDisplay, role, v.Scores)
		if v.IsPlayerTurn {
			log.Println("   your turn! type: roast <text>")
		}
		if v.ShowRoundSummary {
			log.Println("   round summary")
		}
		if v.BattleEnded && v.Winner != nil {
			log.Printf("   battle over, winner %s with %d", v.Winner.UserID, v.Winner.Score)
		}
	default:
		log.Printf("<- %s %s", f.Type, string(f.Data))
	}
}

// command turns one input line into a frame.
func command(line string) (string, interface{}, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "roast":
		return "roast", map[string]string{"content": rest}, nil
	case "vote":
		return "vote", map[string]string{"voted_for_id": rest}, nil
	case "timer":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return "", nil, fmt.Errorf("timer needs a number: %w", err)
		}
		return "timer", map[string]int{"remaining": n}, nil
	case "ready", "rematch", "spectate", "stop_spectating", "heartbeat":
		return cmd, nil, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func main() {
	host := flag.String("host", "localhost:8080", "server address")
	battleID := flag.String("battle", "", "battle id")
	userID := flag.String("user", "", "user id (empty to watch anonymously)")
	flag.Parse()
	if *battleID == "" {
		log.Fatal("-battle is required")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/battles/" + *battleID + "/ws"}
	if *userID != "" {
		u.RawQuery = url.Values{"user_id": {*userID}}.Encode()
	}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var f frame
			if err := c.ReadJSON(&f); err != nil {
				log.Println("Read error:", err)
				return
			}
			printFrame(f)
		}
	}()

	// stdin is read on its own goroutine so interrupts are not blocked
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println("Commands: roast <text> | vote <user> | ready | rematch | spectate | stop_spectating | timer <n>")

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := send(c, "heartbeat", nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			t, payload, err := command(line)
			if err != nil {
				log.Println(err)
				continue
			}
			if err := send(c, t, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", t)
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
