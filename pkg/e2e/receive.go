package e2e

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/threema-gateway/go-msgapi/pkg/crypto"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

// ReceiveResult carries the decoded message plus the paths of any blob
// contents written to disk.
type ReceiveResult struct {
	Message protocol.Message
	Files   []string
}

// ReceiveMessage decrypts an incoming envelope from the given sender. For
// blob-carrying variants the referenced blobs are downloaded, decrypted and
// written under outDir, named after the message id. With an empty outDir the
// blob legs are skipped and only the decoded message is returned.
func (h *Helper) ReceiveMessage(from protocol.Identity, messageID string, box, nonce []byte, outDir string) (*ReceiveResult, error) {
	senderKey, err := h.client.LookupPublicKey(from)
	if err != nil {
		return nil, err
	}
	msg, err := crypto.DecryptMessage(box, nonce, h.privateKey, senderKey)
	if err != nil {
		return nil, err
	}

	result := &ReceiveResult{Message: msg}
	if outDir == "" {
		return result, nil
	}

	switch m := msg.(type) {
	case *protocol.FileMessage:
		err = h.fetchFileBlobs(m, messageID, outDir, result)
	case *protocol.GroupFileMessage:
		err = h.fetchFileBlobs(&m.File, messageID, outDir, result)
	case *protocol.ImageMessage:
		err = h.fetchImageBlob(m, senderKey, messageID, outDir, result)
	case *protocol.GroupSetPhotoMessage:
		err = h.fetchPhotoBlob(m, messageID, outDir, result)
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

func (h *Helper) fetchFileBlobs(m *protocol.FileMessage, messageID, outDir string, result *ReceiveResult) error {
	ciphertext, err := h.client.DownloadBlob(m.BlobID)
	if err != nil {
		return err
	}
	data, err := crypto.DecryptFileData(ciphertext, m.EncryptionKey)
	if err != nil {
		return err
	}
	path, err := writeBlobFile(outDir, blobFileName(messageID, m.FileName, m.MimeType), data)
	if err != nil {
		return err
	}
	result.Files = append(result.Files, path)

	if m.ThumbnailBlobID == nil {
		return nil
	}
	ciphertext, err = h.client.DownloadBlob(*m.ThumbnailBlobID)
	if err != nil {
		return err
	}
	thumb, err := crypto.DecryptFileThumbnailData(ciphertext, m.EncryptionKey)
	if err != nil {
		return err
	}
	path, err = writeBlobFile(outDir, messageID+"-thumbnail.jpg", thumb)
	if err != nil {
		return err
	}
	result.Files = append(result.Files, path)
	return nil
}

func (h *Helper) fetchImageBlob(m *protocol.ImageMessage, senderKey []byte, messageID, outDir string, result *ReceiveResult) error {
	ciphertext, err := h.client.DownloadBlob(m.BlobID)
	if err != nil {
		return err
	}
	data, err := crypto.Decrypt(ciphertext, m.Nonce[:], h.privateKey, senderKey)
	if err != nil {
		return err
	}
	path, err := writeBlobFile(outDir, messageID+".jpg", data)
	if err != nil {
		return err
	}
	result.Files = append(result.Files, path)
	return nil
}

func (h *Helper) fetchPhotoBlob(m *protocol.GroupSetPhotoMessage, messageID, outDir string, result *ReceiveResult) error {
	ciphertext, err := h.client.DownloadBlob(m.BlobID)
	if err != nil {
		return err
	}
	data, err := crypto.DecryptFileData(ciphertext, m.EncryptionKey)
	if err != nil {
		return err
	}
	path, err := writeBlobFile(outDir, messageID+".jpg", data)
	if err != nil {
		return err
	}
	result.Files = append(result.Files, path)
	return nil
}

// blobFileName derives the on-disk name: message id plus the advertised file
// name, or an extension guessed from the mime type.
func blobFileName(messageID, fileName, mimeType string) string {
	if fileName != "" {
		return messageID + "-" + filepath.Base(fileName)
	}
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return messageID + ext
}

func writeBlobFile(outDir, name string, data []byte) (string, error) {
	if strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("%w: bad blob file name %q", protocol.ErrInvalidInput, name)
	}
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
