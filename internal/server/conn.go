package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsinin/message-broker/internal/broker"
	"github.com/tsinin/message-broker/internal/codec"
	"github.com/tsinin/message-broker/internal/model"
)

// ackAck is the single byte written back after a DeliveryConfirmation.
// Clients treat it as opaque.
const ackAck byte = 0x00

// Connection drives the protocol for one TCP peer. The goroutine running
// serve is the only writer of connection state; while parked as a waiter
// the goroutine is blocked on the emerged channel, so Storage's hand-off
// never races with request processing.
type Connection struct {
	id      string
	conn    net.Conn
	reader  *bufio.Reader
	storage broker.Storage
	logger  *zap.Logger

	// emerged carries a message handed off by Storage while this
	// connection is parked. Capacity 1: a connection is a waiter on at
	// most one topic at a time, so the send side never blocks.
	emerged chan model.Message

	// inflight is the message sent to the peer but not yet confirmed,
	// together with the topic it must return to on failure.
	inflight      *model.Message
	inflightTopic string

	// parkedTopic is the topic of the last blocking get that parked this
	// connection. Teardown needs it to route a hand-off that landed in
	// the emerged buffer but was never picked up.
	parkedTopic string

	maxRecord int
}

func newConnection(conn net.Conn, storage broker.Storage, bufSize int, logger *zap.Logger) *Connection {
	id := uuid.New().String()
	return &Connection{
		id:        id,
		conn:      conn,
		reader:    bufio.NewReaderSize(conn, bufSize),
		storage:   storage,
		logger:    logger.With(zap.String("conn", id), zap.String("remote", conn.RemoteAddr().String())),
		emerged:   make(chan model.Message, 1),
		maxRecord: bufSize,
	}
}

// Deliver pushes a freshly posted message into this connection's outbound
// path. Called by Storage after popping the connection from a waiter queue.
func (c *Connection) Deliver(msg model.Message) {
	c.emerged <- msg
}

// serve reads framed requests until the peer goes away, an I/O or protocol
// error occurs, or ctx is cancelled. One request is processed at a time;
// the next read starts only after the previous response (and, for
// GetSuccess, its ack round-trip) completed.
func (c *Connection) serve(ctx context.Context) {
	defer c.teardown()

	c.logger.Debug("client connected")

	for {
		req, err := codec.DecodeRequest(c.reader, c.maxRecord)
		if err != nil {
			c.logReadError(err)
			return
		}

		c.logger.Debug("request received",
			zap.Stringer("type", req.Type),
			zap.String("topic", req.Topic))

		switch req.Type {
		case model.PostMessageSafe:
			if req.Message == nil {
				c.logger.Warn("post request without message, dropping connection")
				return
			}
			c.storage.PostMessage(*req.Message, req.Topic)
			if !c.writeResponse(&model.Response{Type: model.PostSuccess}) {
				return
			}

		case model.GetMessageNonblocking:
			msg, ok := c.storage.GetMessageNonblocking(req.Topic)
			if !ok {
				if !c.writeResponse(&model.Response{Type: model.EmptyTopic}) {
					return
				}
				continue
			}
			if !c.deliverWithAck(msg, req.Topic) {
				return
			}

		case model.GetMessageBlocking:
			c.parkedTopic = req.Topic
			msg, ok := c.storage.GetMessageBlocking(req.Topic, c)
			if !ok {
				// Parked: no bytes go out until a post hands us a message.
				select {
				case msg = <-c.emerged:
				case <-ctx.Done():
					return
				}
			}
			if !c.deliverWithAck(msg, req.Topic) {
				return
			}

		case model.DeliveryConfirmation:
			c.logger.Warn("delivery confirmation outside ack window, dropping connection")
			return

		default:
			c.logger.Warn("unknown request type", zap.Uint32("type", uint32(req.Type)))
			if !c.writeResponse(&model.Response{Type: model.Error}) {
				return
			}
		}
	}
}

// deliverWithAck sends a GetSuccess carrying msg and runs the ack
// round-trip: the peer must answer with DeliveryConfirmation, after which a
// single ack-ack byte retires the delivery. From the moment the response is
// built until the confirmation arrives the message is in flight; teardown
// re-posts it if the round-trip does not complete. Returns false when the
// connection must close.
func (c *Connection) deliverWithAck(msg model.Message, topic string) bool {
	c.inflight = &msg
	c.inflightTopic = topic

	if !c.writeResponse(&model.Response{Type: model.GetSuccess, Message: &msg}) {
		return false
	}

	ack, err := codec.DecodeRequest(c.reader, c.maxRecord)
	if err != nil {
		c.logReadError(err)
		return false
	}
	if ack.Type != model.DeliveryConfirmation {
		c.logger.Warn("expected delivery confirmation",
			zap.Stringer("got", ack.Type))
		return false
	}

	c.inflight = nil
	c.logger.Debug("delivery confirmed", zap.String("topic", topic))

	if _, err := c.conn.Write([]byte{ackAck}); err != nil {
		c.logger.Debug("ack-ack write failed", zap.Error(err))
		return false
	}
	return true
}

// writeResponse encodes resp and sends it as one record per write call.
func (c *Connection) writeResponse(resp *model.Response) bool {
	if _, err := c.conn.Write(codec.EncodeResponse(resp)); err != nil {
		c.logger.Debug("response write failed", zap.Error(err))
		return false
	}
	return true
}

// teardown closes the socket and applies the recovery rule: a message that
// was in flight toward this consumer goes back to its topic queue.
func (c *Connection) teardown() {
	_ = c.conn.Close()

	// A hand-off may have landed in the buffer while we were shutting
	// down; it counts as in flight and is recovered the same way. The
	// buffer can only be filled while parked, so parkedTopic is the
	// topic it belongs to.
	if c.inflight == nil {
		select {
		case msg := <-c.emerged:
			c.inflight = &msg
			c.inflightTopic = c.parkedTopic
		default:
		}
	}

	if c.inflight != nil {
		c.logger.Info("confirmation not received, re-posting message",
			zap.String("topic", c.inflightTopic))
		c.storage.PostMessage(*c.inflight, c.inflightTopic)
		c.inflight = nil
	}

	c.logger.Debug("client disconnected")
}

func (c *Connection) logReadError(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
		c.logger.Debug("connection closed", zap.Error(err))
		return
	}
	c.logger.Warn("request decode failed", zap.Error(err))
}
