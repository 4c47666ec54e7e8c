package protocol

import (
	"errors"
	"fmt"

	"github.com/threema-gateway/go-msgapi/pkg/datautil"
)

var (
	ErrBadMessage      = errors.New("bad message")
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrInvalidInput    = errors.New("invalid input")
)

// Message is one variant of the end-to-end message family. The wire form of
// every message is its type byte followed by the marshaled body.
type Message interface {
	TypeCode() byte
	MarshalBody() ([]byte, error)
}

// Marshal serializes a message to its full wire form (type byte plus body).
func Marshal(m Message) ([]byte, error) {
	body, err := m.MarshalBody()
	if err != nil {
		return nil, err
	}
	data := make([]byte, 1+len(body))
	data[0] = m.TypeCode()
	copy(data[1:], body)
	return data, nil
}

// DecodeMessage parses a full wire message (type byte plus body) into its
// typed variant. Unknown type bytes fail with ErrUnsupportedType; malformed
// bodies fail with ErrBadMessage.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty message", ErrBadMessage)
	}
	body := data[1:]

	switch data[0] {
	case TypeText:
		return decodeText(body)
	case TypeImage:
		return decodeImage(body)
	case TypeLocation:
		return decodeLocation(body)
	case TypeBallotCreate:
		return decodeBallotCreate(body)
	case TypeFile:
		return decodeFile(body)
	case TypeDeliveryReceipt:
		return decodeDeliveryReceipt(body)
	case TypeGroupText:
		return decodeGroupText(body)
	case TypeGroupLocation:
		return decodeGroupLocation(body)
	case TypeGroupFile:
		return decodeGroupFile(body)
	case TypeGroupCreate:
		return decodeGroupCreate(body)
	case TypeGroupRename:
		return decodeGroupRename(body)
	case TypeGroupLeave:
		return decodeGroupLeave(body)
	case TypeGroupSetPhoto:
		return decodeGroupSetPhoto(body)
	case TypeGroupRequestSync:
		return decodeGroupRequestSync(body)
	case TypeGroupBallotCreate:
		return decodeGroupBallotCreate(body)
	case TypeGroupBallotVote:
		return decodeGroupBallotVote(body)
	case TypeGroupDeletePhoto:
		return decodeGroupDeletePhoto(body)
	case TypeGroupDeliveryReceipt:
		return decodeGroupDeliveryReceipt(body)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedType, data[0])
	}
}

// ===== TEXT MESSAGE =====

// TextMessage is a plain UTF-8 text message.
type TextMessage struct {
	Text string
}

func (m *TextMessage) TypeCode() byte { return TypeText }

func (m *TextMessage) MarshalBody() ([]byte, error) {
	if len(m.Text) == 0 {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	return []byte(m.Text), nil
}

func decodeText(body []byte) (*TextMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty text message", ErrBadMessage)
	}
	return &TextMessage{Text: string(body)}, nil
}

// ===== DELIVERY RECEIPT =====

// DeliveryReceipt acknowledges or reacts to one or more earlier messages.
type DeliveryReceipt struct {
	ReceiptType ReceiptType
	MessageIDs  []MessageID
}

func (m *DeliveryReceipt) TypeCode() byte { return TypeDeliveryReceipt }

func (m *DeliveryReceipt) MarshalBody() ([]byte, error) {
	if len(m.MessageIDs) == 0 {
		return nil, fmt.Errorf("%w: delivery receipt needs at least one message id", ErrInvalidInput)
	}
	buf := make([]byte, 1+len(m.MessageIDs)*MessageIDLen)
	buf[0] = byte(m.ReceiptType)
	offset := 1
	for _, id := range m.MessageIDs {
		copy(buf[offset:], id[:])
		offset += MessageIDLen
	}
	return buf, nil
}

func decodeDeliveryReceipt(body []byte) (*DeliveryReceipt, error) {
	if len(body) < 1+MessageIDLen || (len(body)-1)%MessageIDLen != 0 {
		return nil, fmt.Errorf("%w: bad length %d for delivery receipt", ErrBadMessage, len(body))
	}
	r := &DeliveryReceipt{ReceiptType: ReceiptType(body[0])}
	for offset := 1; offset < len(body); offset += MessageIDLen {
		var id MessageID
		copy(id[:], body[offset:offset+MessageIDLen])
		r.MessageIDs = append(r.MessageIDs, id)
	}
	return r, nil
}

// ===== IMAGE MESSAGE (legacy) =====

// ImageMessage is the legacy image variant, kept parseable for old senders.
//
// Deprecated: new senders use FileMessage.
type ImageMessage struct {
	BlobID BlobID
	Size   uint32
	Nonce  [NonceLen]byte
}

func (m *ImageMessage) TypeCode() byte { return TypeImage }

func (m *ImageMessage) MarshalBody() ([]byte, error) {
	buf := make([]byte, BlobIDLen+4+NonceLen)
	offset := 0

	copy(buf[offset:], m.BlobID[:])
	offset += BlobIDLen

	datautil.PutUint32LE(buf[offset:], m.Size)
	offset += 4

	copy(buf[offset:], m.Nonce[:])

	return buf, nil
}

func decodeImage(body []byte) (*ImageMessage, error) {
	if len(body) != BlobIDLen+4+NonceLen {
		return nil, fmt.Errorf("%w: bad length %d for image message", ErrBadMessage, len(body))
	}
	m := &ImageMessage{}
	offset := 0

	copy(m.BlobID[:], body[offset:offset+BlobIDLen])
	offset += BlobIDLen

	m.Size = datautil.Uint32LE(body[offset:])
	offset += 4

	copy(m.Nonce[:], body[offset:offset+NonceLen])

	return m, nil
}
