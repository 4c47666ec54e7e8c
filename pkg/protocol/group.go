package protocol

import (
	"fmt"

	"github.com/threema-gateway/go-msgapi/pkg/datautil"
)

// Group-scoped messages carry the group context at the head of the body.
// Messages that can be sent by any member (text, location, file, ballots,
// leave, receipts) prepend creator identity plus group id; messages only
// ever sent by the creator (create, rename, photo, sync) prepend the bare
// group id and leave GroupID.Creator empty on decode.

const groupHeaderLen = IdentityLen + GroupIDLen

func marshalGroupHeader(g GroupID) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, groupHeaderLen)
	copy(buf, g.Creator)
	copy(buf[IdentityLen:], g.ID[:])
	return buf, nil
}

func parseGroupHeader(body []byte) (GroupID, []byte, error) {
	if len(body) < groupHeaderLen {
		return GroupID{}, nil, fmt.Errorf("%w: group message too short", ErrBadMessage)
	}
	var g GroupID
	g.Creator = Identity(body[:IdentityLen])
	copy(g.ID[:], body[IdentityLen:groupHeaderLen])
	return g, body[groupHeaderLen:], nil
}

func parseGroupIDOnly(body []byte) (GroupID, []byte, error) {
	if len(body) < GroupIDLen {
		return GroupID{}, nil, fmt.Errorf("%w: group message too short", ErrBadMessage)
	}
	var g GroupID
	copy(g.ID[:], body[:GroupIDLen])
	return g, body[GroupIDLen:], nil
}

// ===== GROUP TEXT =====

type GroupTextMessage struct {
	Group GroupID
	Text  string
}

func (m *GroupTextMessage) TypeCode() byte { return TypeGroupText }

func (m *GroupTextMessage) MarshalBody() ([]byte, error) {
	if len(m.Text) == 0 {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	header, err := marshalGroupHeader(m.Group)
	if err != nil {
		return nil, err
	}
	return append(header, m.Text...), nil
}

func decodeGroupText(body []byte) (*GroupTextMessage, error) {
	g, rest, err := parseGroupHeader(body)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: empty group text message", ErrBadMessage)
	}
	return &GroupTextMessage{Group: g, Text: string(rest)}, nil
}

// ===== GROUP LOCATION =====

type GroupLocationMessage struct {
	Group    GroupID
	Location LocationMessage
}

func (m *GroupLocationMessage) TypeCode() byte { return TypeGroupLocation }

func (m *GroupLocationMessage) MarshalBody() ([]byte, error) {
	header, err := marshalGroupHeader(m.Group)
	if err != nil {
		return nil, err
	}
	loc, err := m.Location.MarshalBody()
	if err != nil {
		return nil, err
	}
	return append(header, loc...), nil
}

func decodeGroupLocation(body []byte) (*GroupLocationMessage, error) {
	g, rest, err := parseGroupHeader(body)
	if err != nil {
		return nil, err
	}
	loc, err := decodeLocation(rest)
	if err != nil {
		return nil, err
	}
	return &GroupLocationMessage{Group: g, Location: *loc}, nil
}

// ===== GROUP FILE =====

type GroupFileMessage struct {
	Group GroupID
	File  FileMessage
}

func (m *GroupFileMessage) TypeCode() byte { return TypeGroupFile }

func (m *GroupFileMessage) MarshalBody() ([]byte, error) {
	header, err := marshalGroupHeader(m.Group)
	if err != nil {
		return nil, err
	}
	doc, err := m.File.MarshalBody()
	if err != nil {
		return nil, err
	}
	return append(header, doc...), nil
}

func decodeGroupFile(body []byte) (*GroupFileMessage, error) {
	g, rest, err := parseGroupHeader(body)
	if err != nil {
		return nil, err
	}
	file, err := parseFileJSON(rest)
	if err != nil {
		return nil, err
	}
	return &GroupFileMessage{Group: g, File: *file}, nil
}

// ===== GROUP CREATE =====

// GroupCreateMessage announces a group and its member list. Member order is
// meaningful to some readers and is preserved exactly as given.
type GroupCreateMessage struct {
	Group   GroupID
	Members []Identity
}

func (m *GroupCreateMessage) TypeCode() byte { return TypeGroupCreate }

func (m *GroupCreateMessage) MarshalBody() ([]byte, error) {
	if len(m.Members) == 0 {
		return nil, fmt.Errorf("%w: group create needs at least one member", ErrInvalidInput)
	}
	buf := make([]byte, GroupIDLen+len(m.Members)*IdentityLen)
	copy(buf, m.Group.ID[:])
	offset := GroupIDLen
	for _, member := range m.Members {
		if err := member.Validate(); err != nil {
			return nil, err
		}
		copy(buf[offset:], member)
		offset += IdentityLen
	}
	return buf, nil
}

func decodeGroupCreate(body []byte) (*GroupCreateMessage, error) {
	g, rest, err := parseGroupIDOnly(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < IdentityLen || len(rest)%IdentityLen != 0 {
		return nil, fmt.Errorf("%w: bad member list length %d", ErrBadMessage, len(rest))
	}
	m := &GroupCreateMessage{Group: g}
	for offset := 0; offset < len(rest); offset += IdentityLen {
		m.Members = append(m.Members, Identity(rest[offset:offset+IdentityLen]))
	}
	return m, nil
}

// ===== GROUP RENAME =====

type GroupRenameMessage struct {
	Group GroupID
	Name  string
}

func (m *GroupRenameMessage) TypeCode() byte { return TypeGroupRename }

func (m *GroupRenameMessage) MarshalBody() ([]byte, error) {
	buf := make([]byte, GroupIDLen+len(m.Name))
	copy(buf, m.Group.ID[:])
	copy(buf[GroupIDLen:], m.Name)
	return buf, nil
}

func decodeGroupRename(body []byte) (*GroupRenameMessage, error) {
	g, rest, err := parseGroupIDOnly(body)
	if err != nil {
		return nil, err
	}
	return &GroupRenameMessage{Group: g, Name: string(rest)}, nil
}

// ===== GROUP LEAVE =====

type GroupLeaveMessage struct {
	Group GroupID
}

func (m *GroupLeaveMessage) TypeCode() byte { return TypeGroupLeave }

func (m *GroupLeaveMessage) MarshalBody() ([]byte, error) {
	return marshalGroupHeader(m.Group)
}

func decodeGroupLeave(body []byte) (*GroupLeaveMessage, error) {
	g, rest, err := parseGroupHeader(body)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes in group leave", ErrBadMessage)
	}
	return &GroupLeaveMessage{Group: g}, nil
}

// ===== GROUP SET PHOTO =====

type GroupSetPhotoMessage struct {
	Group         GroupID
	BlobID        BlobID
	Size          uint32
	EncryptionKey BlobKey
}

func (m *GroupSetPhotoMessage) TypeCode() byte { return TypeGroupSetPhoto }

func (m *GroupSetPhotoMessage) MarshalBody() ([]byte, error) {
	buf := make([]byte, GroupIDLen+BlobIDLen+4+BlobKeyLen)
	offset := 0

	copy(buf[offset:], m.Group.ID[:])
	offset += GroupIDLen

	copy(buf[offset:], m.BlobID[:])
	offset += BlobIDLen

	datautil.PutUint32LE(buf[offset:], m.Size)
	offset += 4

	copy(buf[offset:], m.EncryptionKey[:])

	return buf, nil
}

func decodeGroupSetPhoto(body []byte) (*GroupSetPhotoMessage, error) {
	if len(body) != GroupIDLen+BlobIDLen+4+BlobKeyLen {
		return nil, fmt.Errorf("%w: bad length %d for group set photo", ErrBadMessage, len(body))
	}
	m := &GroupSetPhotoMessage{}
	offset := 0

	copy(m.Group.ID[:], body[offset:offset+GroupIDLen])
	offset += GroupIDLen

	copy(m.BlobID[:], body[offset:offset+BlobIDLen])
	offset += BlobIDLen

	m.Size = datautil.Uint32LE(body[offset:])
	offset += 4

	copy(m.EncryptionKey[:], body[offset:offset+BlobKeyLen])

	return m, nil
}

// ===== GROUP DELETE PHOTO =====

type GroupDeletePhotoMessage struct {
	Group GroupID
}

func (m *GroupDeletePhotoMessage) TypeCode() byte { return TypeGroupDeletePhoto }

func (m *GroupDeletePhotoMessage) MarshalBody() ([]byte, error) {
	return append([]byte(nil), m.Group.ID[:]...), nil
}

func decodeGroupDeletePhoto(body []byte) (*GroupDeletePhotoMessage, error) {
	g, rest, err := parseGroupIDOnly(body)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes in group delete photo", ErrBadMessage)
	}
	return &GroupDeletePhotoMessage{Group: g}, nil
}

// ===== GROUP REQUEST SYNC =====

type GroupRequestSyncMessage struct {
	Group GroupID
}

func (m *GroupRequestSyncMessage) TypeCode() byte { return TypeGroupRequestSync }

func (m *GroupRequestSyncMessage) MarshalBody() ([]byte, error) {
	return append([]byte(nil), m.Group.ID[:]...), nil
}

func decodeGroupRequestSync(body []byte) (*GroupRequestSyncMessage, error) {
	g, rest, err := parseGroupIDOnly(body)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes in group request sync", ErrBadMessage)
	}
	return &GroupRequestSyncMessage{Group: g}, nil
}

// ===== GROUP BALLOT CREATE =====

type GroupBallotCreateMessage struct {
	Group  GroupID
	Ballot BallotCreateMessage
}

func (m *GroupBallotCreateMessage) TypeCode() byte { return TypeGroupBallotCreate }

func (m *GroupBallotCreateMessage) MarshalBody() ([]byte, error) {
	header, err := marshalGroupHeader(m.Group)
	if err != nil {
		return nil, err
	}
	payload, err := m.Ballot.marshalPayload()
	if err != nil {
		return nil, err
	}
	return append(header, payload...), nil
}

func decodeGroupBallotCreate(body []byte) (*GroupBallotCreateMessage, error) {
	g, rest, err := parseGroupHeader(body)
	if err != nil {
		return nil, err
	}
	ballot, err := parseBallotCreate(rest)
	if err != nil {
		return nil, err
	}
	return &GroupBallotCreateMessage{Group: g, Ballot: *ballot}, nil
}

// ===== GROUP BALLOT VOTE =====

type GroupBallotVoteMessage struct {
	Group    GroupID
	BallotID BallotID
	Votes    []VoteChoice
}

func (m *GroupBallotVoteMessage) TypeCode() byte { return TypeGroupBallotVote }

func (m *GroupBallotVoteMessage) MarshalBody() ([]byte, error) {
	header, err := marshalGroupHeader(m.Group)
	if err != nil {
		return nil, err
	}
	votes, err := marshalVotes(m.Votes)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(header)+BallotIDLen+len(votes))
	copy(buf, header)
	copy(buf[len(header):], m.BallotID[:])
	copy(buf[len(header)+BallotIDLen:], votes)
	return buf, nil
}

func decodeGroupBallotVote(body []byte) (*GroupBallotVoteMessage, error) {
	g, rest, err := parseGroupHeader(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < BallotIDLen+2 {
		return nil, fmt.Errorf("%w: bad length %d for group ballot vote", ErrBadMessage, len(rest))
	}
	m := &GroupBallotVoteMessage{Group: g}
	copy(m.BallotID[:], rest[:BallotIDLen])
	if m.Votes, err = parseVotes(rest[BallotIDLen:]); err != nil {
		return nil, err
	}
	return m, nil
}

// ===== GROUP DELIVERY RECEIPT =====

type GroupDeliveryReceipt struct {
	Group       GroupID
	ReceiptType ReceiptType
	MessageIDs  []MessageID
}

func (m *GroupDeliveryReceipt) TypeCode() byte { return TypeGroupDeliveryReceipt }

func (m *GroupDeliveryReceipt) MarshalBody() ([]byte, error) {
	header, err := marshalGroupHeader(m.Group)
	if err != nil {
		return nil, err
	}
	inner := DeliveryReceipt{ReceiptType: m.ReceiptType, MessageIDs: m.MessageIDs}
	receipt, err := inner.MarshalBody()
	if err != nil {
		return nil, err
	}
	return append(header, receipt...), nil
}

func decodeGroupDeliveryReceipt(body []byte) (*GroupDeliveryReceipt, error) {
	g, rest, err := parseGroupHeader(body)
	if err != nil {
		return nil, err
	}
	inner, err := decodeDeliveryReceipt(rest)
	if err != nil {
		return nil, err
	}
	return &GroupDeliveryReceipt{
		Group:       g,
		ReceiptType: inner.ReceiptType,
		MessageIDs:  inner.MessageIDs,
	}, nil
}
