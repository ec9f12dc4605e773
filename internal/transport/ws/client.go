// Package ws bridges connected websocket clients to the engine and its
// broadcast fan-out, the way the teacher's internal/websocket package
// bridged clients to game.Manager via lobby.Manager and a Hub. Here each
// client subscribes to exactly one auction's broadcast room and forwards
// inbound bid/vote/control envelopes onto the engine's command queue.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lukev/auctionhouse/internal/broadcast"
	"github.com/lukev/auctionhouse/internal/engine"
	"github.com/lukev/auctionhouse/internal/votetally"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	submitTimeout  = 3 * time.Second
)

var newline = []byte{'\n'}
var space = []byte{' '}

// Client is the per-connection actor pairing one websocket with one
// auction subscription, mirroring the teacher's Client/Hub split.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	eng       *engine.Engine
	auctionID string
	managerID string
	sub       *broadcast.Subscriber
}

// inboundEnvelope is the client->server message shape (spec §4.4, "the
// client and admin-control surfaces share one envelope format").
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type bidPayload struct {
	PlayerID    string `json:"playerID"`
	Amount      int64  `json:"amount"`
	ClientBidID string `json:"clientBidID,omitempty"`
}

type votePayload struct {
	PlayerID string `json:"playerID"`
	Value    string `json:"value"` // "like" | "dislike"
}

type controlPayload struct {
	PlayerID string `json:"playerID,omitempty"`
}

func newClient(conn *websocket.Conn, eng *engine.Engine, auctionID, managerID string, sub *broadcast.Subscriber) *Client {
	return &Client{conn: conn, send: make(chan []byte, 256), eng: eng, auctionID: auctionID, managerID: managerID, sub: sub}
}

// run starts the client's three concurrent loops: reading inbound
// messages, writing outbound ones, and relaying broadcast events onto the
// send channel, until any of them exits.
func (c *Client) run() {
	go c.relayPump()
	go c.writePump()
	c.readPump()
}

func (c *Client) relayPump() {
	for ev := range c.sub.Events() {
		out, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		select {
		case c.send <- out:
		default:
			// Slow client: drop rather than block the relay (spec §4.6(c)).
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.eng.Unsubscribe(c.auctionID, c.sub)
		close(c.send)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("auction %s: client read error: %v", c.auctionID, err)
			}
			return
		}
		message = bytes.TrimSpace(bytes.ReplaceAll(message, newline, space))

		var env inboundEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.sendError("invalid_envelope")
			continue
		}
		c.handleInbound(env)
	}
}

func (c *Client) handleInbound(env inboundEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	switch env.Type {
	case "placeBid":
		var p bidPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("invalid_bid_payload")
			return
		}
		res := c.eng.Submit(ctx, engine.Command{
			Kind: engine.KindPlaceBid, AuctionID: c.auctionID, ActorID: c.managerID,
			PlayerID: p.PlayerID, Amount: p.Amount, ClientBidID: p.ClientBidID,
		})
		c.sendResult("bidAccepted", "bidRejected", res)

	case "vote":
		var p votePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("invalid_vote_payload")
			return
		}
		value := votetally.Like
		if p.Value == "dislike" {
			value = votetally.Dislike
		}
		res := c.eng.Submit(ctx, engine.Command{
			Kind: engine.KindVote, AuctionID: c.auctionID, ActorID: c.managerID,
			PlayerID: p.PlayerID, VoteValue: value,
		})
		c.sendResult("voteAccepted", "voteRejected", res)

	case "start", "stop", "continue", "finalCall", "skip", "undo":
		var p controlPayload
		_ = json.Unmarshal(env.Payload, &p)
		res := c.eng.Submit(ctx, engine.Command{
			Kind: kindFor(env.Type), AuctionID: c.auctionID, ActorID: c.managerID, PlayerID: p.PlayerID,
		})
		c.sendResult("controlAccepted", "controlRejected", res)

	default:
		c.sendError("unknown_message_type")
	}
}

func kindFor(t string) engine.Kind {
	switch t {
	case "start":
		return engine.KindStart
	case "stop":
		return engine.KindStop
	case "continue":
		return engine.KindContinue
	case "finalCall":
		return engine.KindFinalCall
	case "skip":
		return engine.KindSkip
	case "undo":
		return engine.KindUndo
	default:
		return engine.Kind(t)
	}
}

func (c *Client) sendResult(okType, errType string, res engine.Result) {
	if res.Success() {
		out, _ := json.Marshal(map[string]interface{}{"type": okType, "payload": res.Snapshot})
		c.send <- out
		return
	}
	out, _ := json.Marshal(map[string]interface{}{
		"type": errType,
		"payload": map[string]interface{}{
			"errorKind": res.Err.Kind,
			"message":   res.Err.Message,
		},
	})
	c.send <- out
}

func (c *Client) sendError(code string) {
	out, _ := json.Marshal(map[string]interface{}{"type": "error", "payload": code})
	c.send <- out
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
