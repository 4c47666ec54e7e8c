// Package e2e combines the crypto pipeline and the gateway client into
// high-level send and receive operations: look up the recipient key, build
// the typed message, seal the envelope, dispatch it. Blob-carrying variants
// also handle the upload and download legs.
package e2e

import (
	"errors"
	"fmt"

	"github.com/threema-gateway/go-msgapi/pkg/crypto"
	"github.com/threema-gateway/go-msgapi/pkg/gateway"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// ErrNotAllowed means the recipient's client does not advertise the
// capability required for the message type.
var ErrNotAllowed = errors.New("recipient does not support this message type")

// Helper drives end-to-end sends and receives for one sender identity.
type Helper struct {
	client     *gateway.Client
	privateKey []byte
}

// NewHelper wraps a gateway client with the sender's 32-byte private key.
func NewHelper(client *gateway.Client, privateKey []byte) (*Helper, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil gateway client", protocol.ErrInvalidInput)
	}
	if len(privateKey) != crypto.KeySize {
		return nil, crypto.ErrInvalidKey
	}
	h := &Helper{
		client:     client,
		privateKey: append([]byte(nil), privateKey...),
	}
	return h, nil
}

// Client returns the underlying gateway client.
func (h *Helper) Client() *gateway.Client {
	return h.client
}

// encryptTo seals a typed message for one recipient, resolving the public
// key through the client's cache.
func (h *Helper) encryptTo(to protocol.Identity, msg protocol.Message) (box, nonce []byte, err error) {
	publicKey, err := h.client.LookupPublicKey(to)
	if err != nil {
		return nil, nil, err
	}
	box, nonce, err = crypto.EncryptMessage(msg, h.privateKey, publicKey)
	if err != nil {
		return nil, nil, err
	}
	return box, nonce, nil
}

// send seals and dispatches one message, returning the assigned message id.
func (h *Helper) send(to protocol.Identity, msg protocol.Message) (string, error) {
	box, nonce, err := h.encryptTo(to, msg)
	if err != nil {
		return "", err
	}
	return h.client.SendE2E(to, nonce, box)
}

// requireCapability checks that the recipient's client can handle the
// message type; a missing token fails with ErrNotAllowed.
func (h *Helper) requireCapability(to protocol.Identity, capability string) error {
	caps, err := h.client.LookupCapabilities(to)
	if err != nil {
		return err
	}
	if !caps.Has(capability) {
		return fmt.Errorf("%w: %s lacks %q", ErrNotAllowed, to, capability)
	}
	return nil
}

// SendText sends an end-to-end encrypted text message.
func (h *Helper) SendText(to protocol.Identity, text string) (string, error) {
	return h.send(to, &protocol.TextMessage{Text: text})
}

// SendLocation sends an end-to-end encrypted location message.
func (h *Helper) SendLocation(to protocol.Identity, location protocol.LocationMessage) (string, error) {
	return h.send(to, &location)
}

// SendDeliveryReceipt acknowledges earlier messages from the recipient.
func (h *Helper) SendDeliveryReceipt(to protocol.Identity, receiptType protocol.ReceiptType, ids []protocol.MessageID) (string, error) {
	return h.send(to, &protocol.DeliveryReceipt{ReceiptType: receiptType, MessageIDs: ids})
}

// SendBallotCreate sends a new ballot to a single recipient.
func (h *Helper) SendBallotCreate(to protocol.Identity, ballot protocol.BallotCreateMessage) (string, error) {
	return h.send(to, &ballot)
}

// FileAttachment describes a file to send; Thumbnail is optional and shares
// the file's symmetric key.
type FileAttachment struct {
	Data               []byte
	FileName           string
	MimeType           string
	Thumbnail          []byte
	ThumbnailMediaType string
	Caption            string
	Rendering          protocol.RenderingType
}

// uploadFile encrypts and uploads the file and optional thumbnail blobs and
// builds the message body referencing them.
func (h *Helper) uploadFile(att FileAttachment, persist bool) (*protocol.FileMessage, error) {
	if len(att.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", protocol.ErrInvalidInput)
	}
	if att.MimeType == "" {
		return nil, fmt.Errorf("%w: file needs a mime type", protocol.ErrInvalidInput)
	}

	ciphertext, key, err := crypto.EncryptFileData(att.Data)
	if err != nil {
		return nil, err
	}
	blobID, err := h.client.UploadBlob(ciphertext, persist)
	if err != nil {
		return nil, err
	}

	msg := &protocol.FileMessage{
		BlobID:        blobID,
		EncryptionKey: key,
		MimeType:      att.MimeType,
		FileName:      att.FileName,
		Size:          len(att.Data),
		Caption:       att.Caption,
		Rendering:     att.Rendering,
	}

	if len(att.Thumbnail) > 0 {
		thumbID, err := h.client.UploadBlob(crypto.EncryptFileThumbnailData(att.Thumbnail, key), persist)
		if err != nil {
			return nil, err
		}
		msg.ThumbnailBlobID = &thumbID
		msg.ThumbnailMediaType = att.ThumbnailMediaType
		if msg.ThumbnailMediaType == "" {
			msg.ThumbnailMediaType = "image/jpeg"
		}
	}

	return msg, nil
}

// SendFile uploads the attachment and sends a file message referencing it.
// The recipient must advertise the file capability.
func (h *Helper) SendFile(to protocol.Identity, att FileAttachment) (string, error) {
	if err := h.requireCapability(to, gateway.CapabilityFile); err != nil {
		return "", err
	}
	msg, err := h.uploadFile(att, false)
	if err != nil {
		return "", err
	}
	return h.send(to, msg)
}

// SendImage sends a legacy image message: the JPEG bytes are box-encrypted
// for the recipient, uploaded, and referenced by blob id.
//
// Deprecated: new senders use SendFile with RenderingMedia.
func (h *Helper) SendImage(to protocol.Identity, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", protocol.ErrInvalidInput)
	}
	if err := h.requireCapability(to, gateway.CapabilityImage); err != nil {
		return "", err
	}

	publicKey, err := h.client.LookupPublicKey(to)
	if err != nil {
		return "", err
	}
	nonce, err := crypto.RandomNonce()
	if err != nil {
		return "", err
	}
	ciphertext, err := crypto.Encrypt(image, nonce, h.privateKey, publicKey)
	if err != nil {
		return "", err
	}
	blobID, err := h.client.UploadBlob(ciphertext, false)
	if err != nil {
		return "", err
	}

	msg := &protocol.ImageMessage{
		BlobID: blobID,
		Size:   uint32(len(ciphertext)),
	}
	copy(msg.Nonce[:], nonce)
	return h.send(to, msg)
}
