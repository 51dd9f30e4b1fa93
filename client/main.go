// client/main.go
// 简单的命令行测试客户端
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type playerView struct {
	Seat        int    `json:"id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	IsConnected bool   `json:"isConnected"`
	IsFinished  bool   `json:"isFinished"`
}

type stateView struct {
	RoomID  string       `json:"roomId"`
	Turn    int          `json:"turn"`
	Phase   string       `json:"phase"`
	Players []playerView `json:"players"`
	LastLog struct {
		Tag     string `json:"tag"`
		Message string `json:"message"`
	} `json:"lastLog"`
}

func send(conn *websocket.Conn, event string, payload interface{}) error {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = raw
	}
	return conn.WriteJSON(envelope{Event: event, Data: data})
}

func printState(data json.RawMessage) {
	var view stateView
	if err := json.Unmarshal(data, &view); err != nil {
		fmt.Printf("\n<< gameStateUpdate %s\n> ", string(data))
		return
	}
	fmt.Printf("\n[%s/turn %d] %s: %s\n", view.Phase, view.Turn, view.LastLog.Tag, view.LastLog.Message)
	for _, p := range view.Players {
		marker := ""
		if !p.IsConnected {
			marker = " (offline)"
		}
		if p.IsFinished {
			marker = " (finished)"
		}
		fmt.Printf("  #%d %-15s %s%s\n", p.Seat, p.Name, strings.Repeat("=", p.Position)+">", marker)
	}
	fmt.Print("> ")
}

func receive(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			fmt.Printf("\nconnection closed: %v\n", err)
			os.Exit(0)
		}
		switch env.Event {
		case "gameStateUpdate", "gameOver":
			printState(env.Data)
			if env.Event == "gameOver" {
				fmt.Print("\n*** GAME OVER ***\n> ")
			}
		case "roomJoined":
			var joined struct {
				RoomID string `json:"roomId"`
			}
			json.Unmarshal(env.Data, &joined)
			fmt.Printf("\njoined room %s\n> ", joined.RoomID)
		case "authenticated":
			var id struct {
				UserID string `json:"userId"`
				Name   string `json:"name"`
			}
			json.Unmarshal(env.Data, &id)
			fmt.Printf("\nauthenticated as %s (%s)\n> ", id.Name, id.UserID)
		case "forceReselect":
			fmt.Print("\nyour white card was voided, pick a color with: reselect <R|G|Y>\n> ")
		case "error", "authError":
			var e struct {
				Message string `json:"message"`
			}
			json.Unmarshal(env.Data, &e)
			fmt.Printf("\nerror: %s\n> ", e.Message)
		default:
			fmt.Printf("\n<< %s %s\n> ", env.Event, string(env.Data))
		}
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "server websocket address")
	name := flag.String("name", "tester", "player name")
	userID := flag.String("user", "", "existing user id to re-authenticate with")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Printf("dial failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	go receive(conn)

	if err := send(conn, "authenticate", map[string]string{"userId": *userID, "name": *name}); err != nil {
		fmt.Printf("authenticate failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("commands: list | create | join <roomId> | card <R|G|Y|W> | power | reselect <R|G|Y|W> | leave | quit")

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}

		var err error
		switch fields[0] {
		case "list":
			err = send(conn, "requestRoomList", nil)
		case "create":
			err = send(conn, "createRoom", nil)
		case "join":
			if len(fields) < 2 {
				fmt.Println("usage: join <roomId>")
				break
			}
			err = send(conn, "joinRoom", map[string]string{"roomId": strings.ToUpper(fields[1])})
		case "card":
			if len(fields) < 2 {
				fmt.Println("usage: card <R|G|Y|W>")
				break
			}
			err = send(conn, "playerAction", map[string]string{"type": "CHOOSE_CARD", "card": strings.ToUpper(fields[1])})
		case "power":
			err = send(conn, "playerAction", map[string]string{"type": "USE_POWER"})
		case "reselect":
			if len(fields) < 2 {
				fmt.Println("usage: reselect <R|G|Y|W>")
				break
			}
			err = send(conn, "playerAction", map[string]string{"type": "RESELECT_CARD", "card": strings.ToUpper(fields[1])})
		case "leave":
			err = send(conn, "leaveRoom", nil)
		case "quit":
			return
		default:
			fmt.Println("unknown command")
		}
		if err != nil {
			fmt.Printf("send failed: %v\n", err)
			return
		}
		fmt.Print("> ")
	}
}
