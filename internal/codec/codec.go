// Package codec implements the binary wire format shared by the broker and
// its clients. A record is fully self-delimiting:
//
//	Request  = optional<Message> message, string topic, uint32 type
//	Response = optional<Message> message, uint32 type
//	Message  = uint32 data_type, string data
//	string   = uint64 length, raw bytes
//	optional = one byte (0 or 1), then the value if the byte is 1
//
// All integers are little-endian and fixed-width. The codec performs no
// socket I/O; it encodes into byte slices and decodes from a byte source.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tsinin/message-broker/internal/model"
)

// MaxRecordSize is the default bound for decoded string fields, matching
// the default 64 KiB connection buffer. Decode calls take an explicit
// limit so servers can enforce their configured record size.
const MaxRecordSize = 65536

var (
	// ErrRecordTooLarge reports a string field longer than the decode limit.
	ErrRecordTooLarge = errors.New("codec: record exceeds maximum size")

	// ErrBadOptionalFlag reports an optional marker byte other than 0 or 1.
	ErrBadOptionalFlag = errors.New("codec: optional flag is neither 0 nor 1")
)

// EncodeRequest serializes a request into a fresh byte slice.
func EncodeRequest(req *model.Request) []byte {
	var buf bytes.Buffer
	writeOptionalMessage(&buf, req.Message)
	writeString(&buf, []byte(req.Topic))
	writeUint32(&buf, uint32(req.Type))
	return buf.Bytes()
}

// EncodeResponse serializes a response into a fresh byte slice.
func EncodeResponse(resp *model.Response) []byte {
	var buf bytes.Buffer
	writeOptionalMessage(&buf, resp.Message)
	writeUint32(&buf, uint32(resp.Type))
	return buf.Bytes()
}

// DecodeRequest reads exactly one request record from r. String fields
// longer than limit bytes are rejected; limit <= 0 means MaxRecordSize.
func DecodeRequest(r io.Reader, limit int) (*model.Request, error) {
	if limit <= 0 {
		limit = MaxRecordSize
	}
	msg, err := readOptionalMessage(r, limit)
	if err != nil {
		return nil, fmt.Errorf("request message: %w", err)
	}
	topic, err := readString(r, limit)
	if err != nil {
		return nil, fmt.Errorf("request topic: %w", err)
	}
	typ, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("request type: %w", err)
	}
	return &model.Request{
		Message: msg,
		Topic:   string(topic),
		Type:    model.RequestType(typ),
	}, nil
}

// DecodeResponse reads exactly one response record from r. String fields
// longer than limit bytes are rejected; limit <= 0 means MaxRecordSize.
func DecodeResponse(r io.Reader, limit int) (*model.Response, error) {
	if limit <= 0 {
		limit = MaxRecordSize
	}
	msg, err := readOptionalMessage(r, limit)
	if err != nil {
		return nil, fmt.Errorf("response message: %w", err)
	}
	typ, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("response type: %w", err)
	}
	return &model.Response{
		Message: msg,
		Type:    model.ResponseType(typ),
	}, nil
}

// --- encoding primitives ---

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, data []byte) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(len(data)))
	buf.Write(b[:])
	buf.Write(data)
}

func writeOptionalMessage(buf *bytes.Buffer, msg *model.Message) {
	if msg == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeUint32(buf, uint32(msg.DataType))
	writeString(buf, msg.Data)
}

// --- decoding primitives ---

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readString(r io.Reader, limit int) ([]byte, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint64(b[:])
	if length > uint64(limit) {
		return nil, ErrRecordTooLarge
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func readOptionalMessage(r io.Reader, limit int) (*model.Message, error) {
	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return nil, err
	}
	switch flag[0] {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, ErrBadOptionalFlag
	}

	dataType, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	data, err := readString(r, limit)
	if err != nil {
		return nil, err
	}
	return &model.Message{
		DataType: model.MessageDataType(dataType),
		Data:     data,
	}, nil
}
