package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// UploadService stores product images for later use in render requests.
type UploadService struct {
	Assets   domain.AssetStore
	MaxBytes int64
}

// NewUploadService constructs an UploadService with the given size cap.
func NewUploadService(assets domain.AssetStore, maxBytes int64) UploadService {
	return UploadService{Assets: assets, MaxBytes: maxBytes}
}

// UploadProductImage decodes a base64 payload, verifies size and content
// type by sniffing (the client-declared MIME is advisory only), and stores
// it under a per-user key. Returns the public URL.
func (s UploadService) UploadProductImage(ctx context.Context, userID, b64 string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: missing user id", domain.ErrInvalidArgument)
	}
	if b64 == "" {
		return "", fmt.Errorf("%w: missing base64 payload", domain.ErrInvalidArgument)
	}
	// Tolerate data-URL prefixes from browser clients.
	if i := strings.Index(b64, ","); i >= 0 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}

	// Cheap pre-check before decoding: base64 inflates by 4/3.
	if int64(len(b64)) > s.MaxBytes*4/3+4 {
		return "", fmt.Errorf("%w: image exceeds %d bytes", domain.ErrTooLarge, s.MaxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", domain.ErrInvalidArgument, err)
	}
	if int64(len(data)) > s.MaxBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", domain.ErrTooLarge, s.MaxBytes)
	}

	mt := mimetype.Detect(data)
	var ext string
	switch mt.String() {
	case "image/jpeg":
		ext = "jpg"
	case "image/png":
		ext = "png"
	default:
		return "", fmt.Errorf("%w: unsupported image type %s", domain.ErrInvalidArgument, mt.String())
	}

	key := fmt.Sprintf("%s/%d-%s.%s", userID, time.Now().UTC().UnixMilli(), randomHex(4), ext)
	url, err := s.Assets.Put(ctx, key, data, mt.String())
	if err != nil {
		return "", err
	}
	return url, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
