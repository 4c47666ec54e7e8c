package e2e

import (
	"fmt"

	"github.com/threema-gateway/go-msgapi/pkg/crypto"
	"github.com/threema-gateway/go-msgapi/pkg/gateway"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// Group sends fan the same message out to every member through the bulk
// endpoint: one envelope per member, each sealed under that member's key,
// submitted in the caller's member order.

// sendToGroup seals the message once per member and dispatches the batch.
func (h *Helper) sendToGroup(members []protocol.Identity, msg protocol.Message) ([]gateway.BulkResult, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: empty member list", protocol.ErrInvalidInput)
	}
	batch := make([]gateway.BulkMessage, 0, len(members))
	for _, member := range members {
		box, nonce, err := h.encryptTo(member, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt for %s: %w", member, err)
		}
		batch = append(batch, gateway.BulkMessage{
			To:    member,
			Nonce: nonce,
			Box:   box,
			Group: true,
		})
	}
	return h.client.SendE2EBulk(batch)
}

// SendGroupText sends a text message to all group members.
func (h *Helper) SendGroupText(group protocol.GroupID, members []protocol.Identity, text string) ([]gateway.BulkResult, error) {
	return h.sendToGroup(members, &protocol.GroupTextMessage{Group: group, Text: text})
}

// SendGroupLocation sends a location message to all group members.
func (h *Helper) SendGroupLocation(group protocol.GroupID, members []protocol.Identity, location protocol.LocationMessage) ([]gateway.BulkResult, error) {
	return h.sendToGroup(members, &protocol.GroupLocationMessage{Group: group, Location: location})
}

// SendGroupFile uploads the attachment once and sends a file message to all
// group members. The blobs are persisted so every member can download them.
func (h *Helper) SendGroupFile(group protocol.GroupID, members []protocol.Identity, att FileAttachment) ([]gateway.BulkResult, error) {
	file, err := h.uploadFile(att, true)
	if err != nil {
		return nil, err
	}
	return h.sendToGroup(members, &protocol.GroupFileMessage{Group: group, File: *file})
}

// SendGroupCreate announces the group and its member list to all members.
func (h *Helper) SendGroupCreate(group protocol.GroupID, members []protocol.Identity) ([]gateway.BulkResult, error) {
	return h.sendToGroup(members, &protocol.GroupCreateMessage{Group: group, Members: members})
}

// SendGroupRename announces a new group name to all members.
func (h *Helper) SendGroupRename(group protocol.GroupID, members []protocol.Identity, name string) ([]gateway.BulkResult, error) {
	return h.sendToGroup(members, &protocol.GroupRenameMessage{Group: group, Name: name})
}

// SendGroupLeave announces that the sender leaves the group.
func (h *Helper) SendGroupLeave(group protocol.GroupID, members []protocol.Identity) ([]gateway.BulkResult, error) {
	return h.sendToGroup(members, &protocol.GroupLeaveMessage{Group: group})
}

// SendGroupSetPhoto encrypts and uploads the group photo with a fresh
// symmetric key and announces it to all members. The blob is persisted.
func (h *Helper) SendGroupSetPhoto(group protocol.GroupID, members []protocol.Identity, photo []byte) ([]gateway.BulkResult, error) {
	if len(photo) == 0 {
		return nil, fmt.Errorf("%w: empty photo", protocol.ErrInvalidInput)
	}
	ciphertext, key, err := crypto.EncryptFileData(photo)
	if err != nil {
		return nil, err
	}
	blobID, err := h.client.UploadBlob(ciphertext, true)
	if err != nil {
		return nil, err
	}
	msg := &protocol.GroupSetPhotoMessage{
		Group:         group,
		BlobID:        blobID,
		Size:          uint32(len(photo)),
		EncryptionKey: key,
	}
	return h.sendToGroup(members, msg)
}

// SendGroupDeletePhoto removes the group photo for all members.
func (h *Helper) SendGroupDeletePhoto(group protocol.GroupID, members []protocol.Identity) ([]gateway.BulkResult, error) {
	return h.sendToGroup(members, &protocol.GroupDeletePhotoMessage{Group: group})
}

// SendGroupRequestSync asks the group creator to resend the group state.
func (h *Helper) SendGroupRequestSync(group protocol.GroupID) ([]gateway.BulkResult, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}
	return h.sendToGroup([]protocol.Identity{group.Creator}, &protocol.GroupRequestSyncMessage{Group: group})
}

// SendGroupBallotCreate sends a new ballot to all group members.
func (h *Helper) SendGroupBallotCreate(group protocol.GroupID, members []protocol.Identity, ballot protocol.BallotCreateMessage) ([]gateway.BulkResult, error) {
	return h.sendToGroup(members, &protocol.GroupBallotCreateMessage{Group: group, Ballot: ballot})
}

// SendGroupBallotVote casts votes on a group ballot.
func (h *Helper) SendGroupBallotVote(group protocol.GroupID, members []protocol.Identity, ballotID protocol.BallotID, votes []protocol.VoteChoice) ([]gateway.BulkResult, error) {
	msg := &protocol.GroupBallotVoteMessage{Group: group, BallotID: ballotID, Votes: votes}
	return h.sendToGroup(members, msg)
}

// SendGroupDeliveryReceipt acknowledges earlier group messages.
func (h *Helper) SendGroupDeliveryReceipt(group protocol.GroupID, members []protocol.Identity, receiptType protocol.ReceiptType, ids []protocol.MessageID) ([]gateway.BulkResult, error) {
	msg := &protocol.GroupDeliveryReceipt{Group: group, ReceiptType: receiptType, MessageIDs: ids}
	return h.sendToGroup(members, msg)
}
