// Package client implements a synchronous client for the broker's binary
// TCP protocol: serialize, write, read, deserialize — plus the ack
// round-trip after every received message.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/tsinin/message-broker/internal/codec"
	"github.com/tsinin/message-broker/internal/model"
)

// ErrNotConnected is returned when a request is issued before Connect.
var ErrNotConnected = errors.New("client: not connected")

// Client talks to one broker over a single TCP connection. It is not safe
// for concurrent use: the protocol allows one outstanding request per
// connection.
type Client struct {
	addr    string
	conn    net.Conn
	reader  *bufio.Reader
	bufSize int
}

// New creates a client for the broker at the given address and port.
func New(address string, port int) *Client {
	return &Client{
		addr:    fmt.Sprintf("%s:%d", address, port),
		bufSize: codec.MaxRecordSize,
	}
}

// Connect establishes the TCP connection. It must be called before any
// request.
func (c *Client) Connect() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, c.bufSize)
	return nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// PostMessage posts a message to a topic and waits for the broker's
// confirmation.
func (c *Client) PostMessage(msg model.Message, topic string) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	resp, err := c.roundTrip(&model.Request{
		Message: &msg,
		Topic:   topic,
		Type:    model.PostMessageSafe,
	})
	if err != nil {
		return err
	}
	if resp.Type != model.PostSuccess {
		return fmt.Errorf("post to %q failed: %s", topic, resp.Type)
	}
	return nil
}

// GetMessage retrieves one message from a topic. With blocking set, the
// call waits until a message is posted; otherwise an empty topic yields
// (nil, nil). On success the delivery is confirmed to the broker before
// the message is returned.
func (c *Client) GetMessage(topic string, blocking bool) (*model.Message, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	reqType := model.GetMessageNonblocking
	if blocking {
		reqType = model.GetMessageBlocking
	}

	resp, err := c.roundTrip(&model.Request{Topic: topic, Type: reqType})
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case model.EmptyTopic:
		return nil, nil
	case model.GetSuccess:
		if resp.Message == nil {
			return nil, fmt.Errorf("get from %q: GetSuccess without message", topic)
		}
		if err := c.confirmDelivery(topic); err != nil {
			return nil, err
		}
		return resp.Message, nil
	default:
		return nil, fmt.Errorf("get from %q failed: %s", topic, resp.Type)
	}
}

// confirmDelivery runs the second half of the ack round-trip: send the
// confirmation, then read the broker's single opaque ack-ack byte.
func (c *Client) confirmDelivery(topic string) error {
	if _, err := c.conn.Write(codec.EncodeRequest(&model.Request{
		Topic: topic,
		Type:  model.DeliveryConfirmation,
	})); err != nil {
		return fmt.Errorf("send delivery confirmation: %w", err)
	}

	var ack [1]byte
	if _, err := io.ReadFull(c.reader, ack[:]); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(req *model.Request) (*model.Response, error) {
	if _, err := c.conn.Write(codec.EncodeRequest(req)); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	resp, err := codec.DecodeResponse(c.reader, c.bufSize)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
