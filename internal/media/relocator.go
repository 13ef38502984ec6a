package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ventia/crm-ingest/pkg/logging"
)

// S3API is the subset of the S3 client used by Relocator.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// extensionByMIME maps declared content types to stored file extensions.
// Order matters: more specific patterns come first.
var extensionByMIME = []struct {
	pattern   string
	extension string
}{
	{"image/jpeg", "jpg"},
	{"image/jpg", "jpg"},
	{"image/png", "png"},
	{"image/gif", "gif"},
	{"image/webp", "webp"},
	{"audio/ogg", "ogg"},
	{"audio/opus", "ogg"},
	{"audio/mpeg", "mp3"},
	{"audio/mp3", "mp3"},
	{"audio/wav", "wav"},
	{"audio/webm", "webm"},
	{"video/mp4", "mp4"},
	{"video/webm", "webm"},
	{"application/pdf", "pdf"},
}

// Relocator downloads externally hosted attachments and persists them into
// the CRM media bucket under a lead-scoped path. Every failure path is
// absorbed: callers always get (url, ok) and proceed without a stored copy
// when ok is false.
type Relocator struct {
	s3Client      S3API
	httpClient    *http.Client
	bucket        string
	publicBaseURL string
	logger        *logging.Logger
	now           func() time.Time
}

type RelocatorConfig struct {
	S3Client      S3API
	HTTPClient    *http.Client
	Bucket        string
	PublicBaseURL string
	Logger        *logging.Logger
}

func NewRelocator(cfg RelocatorConfig) *Relocator {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Relocator{
		s3Client:      cfg.S3Client,
		httpClient:    cfg.HTTPClient,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        cfg.Logger,
		now:           time.Now,
	}
}

// Enabled reports whether relocation is configured.
func (r *Relocator) Enabled() bool {
	return r != nil && r.s3Client != nil && r.bucket != ""
}

// Relocate fetches sourceURL and uploads it to {leadID}/{epochMillis}.{ext},
// returning the stable public URL. ok is false on any failure; message
// persistence proceeds with the original external URL in that case.
func (r *Relocator) Relocate(ctx context.Context, sourceURL, leadID, fileName, mimeType string) (string, bool) {
	if !r.Enabled() || sourceURL == "" || leadID == "" {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		r.logger.Error("media download request failed", "error", err, "url", sourceURL)
		return "", false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Error("media download failed", "error", err, "url", sourceURL)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Error("media download returned non-2xx", "status", resp.StatusCode, "url", sourceURL)
		return "", false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.logger.Error("media download read failed", "error", err, "url", sourceURL)
		return "", false
	}

	contentType := strings.TrimSpace(mimeType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("%s/%d.%s", leadID, r.now().UnixMilli(), Extension(mimeType, fileName))

	_, err = r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		r.logger.Error("media upload failed", "error", err, "key", key)
		return "", false
	}

	return r.publicURL(key), true
}

// Extension resolves the stored file extension from the declared MIME type,
// falling back to the original filename's suffix, then "bin".
func Extension(mimeType, fileName string) string {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	for _, entry := range extensionByMIME {
		if strings.HasPrefix(mime, entry.pattern) {
			return entry.extension
		}
	}
	if idx := strings.LastIndex(fileName, "."); idx >= 0 && idx < len(fileName)-1 {
		return strings.ToLower(fileName[idx+1:])
	}
	return "bin"
}

func (r *Relocator) publicURL(key string) string {
	if r.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", r.publicBaseURL, r.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", r.bucket, key)
}
