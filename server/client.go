package server

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	grapherror "github.com/teranos/discograph/graph/error"
	"github.com/teranos/discograph/logger"
)

// WebSocket timeouts, following the gorilla chat example
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum request size accepted from the peer
	maxMessageSize = 4096

	// Time allowed for one network build requested over the socket
	buildTimeout = 30 * time.Second
)

// Client is one WebSocket connection. Requests are answered in order.
type Client struct {
	server    *DiscographServer
	conn      *websocket.Conn
	send      chan *NetworkMessage
	id        string
	closeOnce sync.Once
}

func newClient(s *DiscographServer, conn *websocket.Conn) *Client {
	return &Client{
		server: s,
		conn:   conn,
		send:   make(chan *NetworkMessage, MaxClientMessageQueueSize),
		id:     uuid.NewString()[:8],
	}
}

// close closes the send channel once; writePump then closes the connection.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
			c.close()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		var req NetworkRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ge := grapherror.New(grapherror.CategoryWebSocket,
				errors.NewInvalidRequestError("malformed message: %v", err), "").
				WithSubcategory(grapherror.SubcategoryWSMessage)
			c.enqueue(&NetworkMessage{Type: "error", Error: ge.ToPayload()})
			continue
		}
		c.routeMessage(&req)
	}
}

// handleReadError logs unexpected close errors. Normal closure is silent.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseNormalClosure,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		ge := grapherror.New(grapherror.CategoryWebSocket, err, "WebSocket connection closed unexpectedly").
			WithSubcategory(grapherror.SubcategoryWSRead)
		c.server.logger.Warnw("WebSocket read error", append(ge.ToLogFields(), "client_id", c.id)...)
	}
}

func (c *Client) routeMessage(req *NetworkRequest) {
	switch req.Type {
	case "", "network":
		c.handleNetwork(req)
	case "ping":
		c.enqueue(&NetworkMessage{Type: "pong"})
	default:
		c.server.logger.Debugw("Unknown message type", "type", req.Type, "client_id", c.id)
	}
}

// handleNetwork builds (or reads from cache) the requested network and
// queues the reply.
func (c *Client) handleNetwork(req *NetworkRequest) {
	ctx, cancel := context.WithTimeout(c.server.ctx, buildTimeout)
	defer cancel()
	ctx = logger.WithRequestID(ctx, c.id+"-"+uuid.NewString()[:8])

	reply, err := c.buildReply(ctx, req)
	if err != nil {
		ge := grapherror.Classify(err)
		logger.FromContext(ctx, c.server.logger).Debugw("WebSocket network request failed",
			append(ge.ToLogFields(), "client_id", c.id)...)
		reply = &NetworkMessage{Type: "error", Key: req.Key, Error: ge.ToPayload()}
	}
	c.enqueue(reply)
}

func (c *Client) buildReply(ctx context.Context, req *NetworkRequest) (*NetworkMessage, error) {
	key, err := entity.ParseJSONKey(req.Key)
	if err != nil {
		return nil, grapherror.New(grapherror.CategoryRequest, err, "").
			WithSubcategory(grapherror.SubcategoryRequestEntityType)
	}
	values := url.Values{"roles": req.Roles}
	if req.Year != "" {
		values["year"] = []string{req.Year}
	}
	q, err := c.server.parseNetworkQuery(key, values)
	if err != nil {
		return nil, err
	}
	q.mobile = req.Mobile

	network, err := c.server.network(ctx, q)
	if err != nil {
		return nil, err
	}
	return &NetworkMessage{Type: "network", Key: key.JSONKey(), Network: network}, nil
}

// enqueue drops the message when the client is not keeping up.
func (c *Client) enqueue(msg *NetworkMessage) {
	defer func() {
		// send was closed by the hub while we were building
		if recover() != nil {
			c.server.logger.Debugw("Client gone, dropping reply", "client_id", c.id)
		}
	}()
	select {
	case c.send <- msg:
	default:
		c.server.logger.Warnw("Client send channel full, dropping reply", "client_id", c.id)
	}
}

// writePump writes queued replies and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				ge := grapherror.New(grapherror.CategoryWebSocket, err, "Failed to send network to client").
					WithSubcategory(grapherror.SubcategoryWSWrite)
				c.server.logger.Warnw("Network write error", append(ge.ToLogFields(), "client_id", c.id)...)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
