package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

type s3Fake struct {
	s3iface.S3API
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *s3Fake) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	raw, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(raw))
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestMirrorUploadsEncryptedObject(t *testing.T) {
	fake := &s3Fake{}
	m := NewWithClient(fake, "legal-quarantine", resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}), nil)

	if err := m.Mirror(context.Background(), "/data/storage/quarantine/2026/10/abc.bin", []byte("EICAR")); err != nil {
		t.Fatalf("Mirror() error = %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected one put, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.StringValue(in.Key) != "quarantine/2026/10/abc.bin" {
		t.Fatalf("unexpected key %s", aws.StringValue(in.Key))
	}
	if aws.StringValue(in.ServerSideEncryption) != s3.ServerSideEncryptionAes256 {
		t.Fatalf("expected SSE, got %v", in.ServerSideEncryption)
	}
	if in.ACL != nil {
		t.Fatalf("quarantine objects must not carry an ACL")
	}
	if fake.bodies[0] != "EICAR" {
		t.Fatalf("unexpected body %q", fake.bodies[0])
	}
}

func TestMirrorWrapsErrors(t *testing.T) {
	fake := &s3Fake{err: errors.New("access denied")}
	m := NewWithClient(fake, "b", resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}), nil)
	if err := m.Mirror(context.Background(), "q.bin", []byte("x")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("q.bin"); got != "quarantine/q.bin" {
		t.Fatalf("objectKey(short) = %s", got)
	}
}
