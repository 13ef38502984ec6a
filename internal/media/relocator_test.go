package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ventia/crm-ingest/pkg/logging"
)

type fakeS3 struct {
	putErr    error
	lastInput *s3.PutObjectInput
	body      []byte
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.lastInput = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestExtension(t *testing.T) {
	tests := []struct {
		mime     string
		fileName string
		want     string
	}{
		{"audio/ogg", "", "ogg"},
		{"audio/ogg; codecs=opus", "", "ogg"},
		{"image/png", "", "png"},
		{"image/jpeg", "", "jpg"},
		{"video/mp4", "", "mp4"},
		{"application/pdf", "", "pdf"},
		{"application/x-thing", "doc.pdf", "pdf"},
		{"", "archivo.JPEG", "jpeg"},
		{"", "", "bin"},
		{"application/unknown", "noext", "bin"},
	}
	for _, tt := range tests {
		if got := Extension(tt.mime, tt.fileName); got != tt.want {
			t.Errorf("Extension(%q, %q) = %q, want %q", tt.mime, tt.fileName, got, tt.want)
		}
	}
}

func TestRelocateSuccess(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ogg-bytes"))
	}))
	defer source.Close()

	s3Stub := &fakeS3{}
	rel := NewRelocator(RelocatorConfig{
		S3Client:      s3Stub,
		Bucket:        "crm-media",
		PublicBaseURL: "https://cdn.example.com",
		Logger:        logging.Default(),
	})

	url, ok := rel.Relocate(context.Background(), source.URL, "lead-1", "voice.ogg", "audio/ogg")
	if !ok {
		t.Fatal("expected relocation to succeed")
	}
	if !strings.HasPrefix(url, "https://cdn.example.com/crm-media/lead-1/") || !strings.HasSuffix(url, ".ogg") {
		t.Errorf("unexpected public url %q", url)
	}
	if string(s3Stub.body) != "ogg-bytes" {
		t.Errorf("uploaded body = %q", s3Stub.body)
	}
	if got := *s3Stub.lastInput.ContentType; got != "audio/ogg" {
		t.Errorf("content type = %q", got)
	}
}

func TestRelocateNon2xxReturnsFalse(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer source.Close()

	rel := NewRelocator(RelocatorConfig{S3Client: &fakeS3{}, Bucket: "crm-media", Logger: logging.Default()})
	if _, ok := rel.Relocate(context.Background(), source.URL, "lead-1", "", ""); ok {
		t.Fatal("expected failure on non-2xx download")
	}
}

func TestRelocateUploadFailureReturnsFalse(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer source.Close()

	rel := NewRelocator(RelocatorConfig{
		S3Client: &fakeS3{putErr: errors.New("s3 down")},
		Bucket:   "crm-media",
		Logger:   logging.Default(),
	})
	if _, ok := rel.Relocate(context.Background(), source.URL, "lead-1", "", ""); ok {
		t.Fatal("expected failure on upload error")
	}
}

func TestRelocateDisabled(t *testing.T) {
	var rel *Relocator
	if rel.Enabled() {
		t.Fatal("nil relocator must report disabled")
	}
	rel = NewRelocator(RelocatorConfig{Logger: logging.Default()})
	if _, ok := rel.Relocate(context.Background(), "http://x", "lead-1", "", ""); ok {
		t.Fatal("unconfigured relocator must return false")
	}
}

func TestRelocateDefaultContentType(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw"))
	}))
	defer source.Close()

	s3Stub := &fakeS3{}
	rel := NewRelocator(RelocatorConfig{S3Client: s3Stub, Bucket: "b", Logger: logging.Default()})
	_, ok := rel.Relocate(context.Background(), source.URL, "lead-2", "", "")
	if !ok {
		t.Fatal("expected success")
	}
	if got := *s3Stub.lastInput.ContentType; got != "application/octet-stream" {
		t.Errorf("default content type = %q", got)
	}
	if !strings.HasSuffix(*s3Stub.lastInput.Key, ".bin") {
		t.Errorf("default extension key = %q", *s3Stub.lastInput.Key)
	}
}
