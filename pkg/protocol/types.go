package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/threema-gateway/go-msgapi/pkg/datautil"
)

// Wire lengths
const (
	IdentityLen  = 8
	MessageIDLen = 8
	GroupIDLen   = 8
	BallotIDLen  = 8
	BlobIDLen    = 16
	BlobKeyLen   = 32
	NonceLen     = 24
	KeyLen       = 32
)

// Message type codes
const (
	TypeText                 byte = 0x01
	TypeImage                byte = 0x02 // legacy
	TypeLocation             byte = 0x10
	TypeBallotCreate         byte = 0x15
	TypeFile                 byte = 0x17
	TypeGroupText            byte = 0x41
	TypeGroupLocation        byte = 0x42
	TypeGroupFile            byte = 0x46
	TypeGroupCreate          byte = 0x4a
	TypeGroupRename          byte = 0x4b
	TypeGroupLeave           byte = 0x4c
	TypeGroupSetPhoto        byte = 0x50
	TypeGroupRequestSync     byte = 0x51
	TypeGroupBallotCreate    byte = 0x52
	TypeGroupBallotVote      byte = 0x53
	TypeGroupDeletePhoto     byte = 0x54
	TypeDeliveryReceipt      byte = 0x80
	TypeGroupDeliveryReceipt byte = 0x81
)

// Receipt types
type ReceiptType byte

const (
	ReceiptReceived    ReceiptType = 1
	ReceiptRead        ReceiptType = 2
	ReceiptUserAck     ReceiptType = 3
	ReceiptUserDecline ReceiptType = 4
)

// Rendering types for file messages
type RenderingType int

const (
	RenderingFile    RenderingType = 0
	RenderingMedia   RenderingType = 1
	RenderingSticker RenderingType = 2
)

// Ballot enums
type BallotState int

const (
	BallotOpen   BallotState = 0
	BallotClosed BallotState = 1
)

type VotingMode int

const (
	VotingSingle VotingMode = 0
	VotingMulti  VotingMode = 1
)

type ResultsDisclosure int

const (
	DisclosureClosed       ResultsDisclosure = 0
	DisclosureIntermediate ResultsDisclosure = 1
)

type DisplayMode int

const (
	DisplayList    DisplayMode = 0
	DisplaySummary DisplayMode = 1
)

// Identity is the 8-character address of a participant on the messaging
// service. It is opaque to the client apart from its length.
type Identity string

// Validate checks the identity length.
func (id Identity) Validate() error {
	if len(id) != IdentityLen {
		return fmt.Errorf("%w: identity %q must be %d characters", ErrInvalidInput, string(id), IdentityLen)
	}
	return nil
}

// MessageID is the 8-byte server-assigned message identifier.
type MessageID [MessageIDLen]byte

// String returns the id as lowercase hex.
func (m MessageID) String() string {
	return datautil.EncodeHex(m[:])
}

// ParseMessageID parses a hex-encoded message id.
func ParseMessageID(s string) (MessageID, error) {
	var m MessageID
	raw, err := datautil.DecodeHex(s)
	if err != nil {
		return m, err
	}
	if len(raw) != MessageIDLen {
		return m, fmt.Errorf("%w: message id must be %d bytes", ErrInvalidInput, MessageIDLen)
	}
	copy(m[:], raw)
	return m, nil
}

// BallotID is the 8-byte ballot identifier chosen by the ballot creator.
type BallotID [BallotIDLen]byte

// BlobID is the 16-byte handle of a server-side ciphertext blob.
type BlobID [BlobIDLen]byte

// String returns the id as lowercase hex.
func (b BlobID) String() string {
	return datautil.EncodeHex(b[:])
}

// MarshalText encodes the blob id as lowercase hex for JSON bodies.
func (b BlobID) MarshalText() ([]byte, error) {
	return []byte(datautil.EncodeHex(b[:])), nil
}

// UnmarshalText decodes a hex-encoded blob id.
func (b *BlobID) UnmarshalText(text []byte) error {
	raw, err := datautil.DecodeHex(string(text))
	if err != nil {
		return err
	}
	if len(raw) != BlobIDLen {
		return fmt.Errorf("%w: blob id must be %d bytes", ErrBadMessage, BlobIDLen)
	}
	copy(b[:], raw)
	return nil
}

// ParseBlobID parses a hex-encoded blob id.
func ParseBlobID(s string) (BlobID, error) {
	var b BlobID
	err := b.UnmarshalText([]byte(s))
	return b, err
}

// BlobKey is the 32-byte symmetric key protecting a blob.
type BlobKey [BlobKeyLen]byte

// MarshalText encodes the key as lowercase hex for JSON bodies.
func (k BlobKey) MarshalText() ([]byte, error) {
	return []byte(datautil.EncodeHex(k[:])), nil
}

// UnmarshalText decodes a hex-encoded blob key.
func (k *BlobKey) UnmarshalText(text []byte) error {
	raw, err := datautil.DecodeHex(string(text))
	if err != nil {
		return err
	}
	if len(raw) != BlobKeyLen {
		return fmt.Errorf("%w: blob key must be %d bytes", ErrBadMessage, BlobKeyLen)
	}
	copy(k[:], raw)
	return nil
}

// GroupID identifies a group: the creator's identity plus an 8-byte id
// assigned by the creator, stable for the group lifetime.
type GroupID struct {
	Creator Identity
	ID      [GroupIDLen]byte
}

// Validate checks the creator identity.
func (g GroupID) Validate() error {
	return g.Creator.Validate()
}

// IDUint64 packs the group id as a big-endian integer, used for hashing.
func (g GroupID) IDUint64() uint64 {
	return binary.BigEndian.Uint64(g.ID[:])
}

// NewGroupID builds a GroupID from a creator identity and an 8-byte id.
func NewGroupID(creator Identity, id []byte) (GroupID, error) {
	var g GroupID
	if err := creator.Validate(); err != nil {
		return g, err
	}
	if len(id) != GroupIDLen {
		return g, fmt.Errorf("%w: group id must be %d bytes", ErrInvalidInput, GroupIDLen)
	}
	g.Creator = creator
	copy(g.ID[:], id)
	return g, nil
}

// RandomBallotID generates a fresh random ballot id.
func RandomBallotID() (BallotID, error) {
	var b BallotID
	if _, err := rand.Read(b[:]); err != nil {
		return b, err
	}
	return b, nil
}
