package objectclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/Procura/internal/config"
)

func TestArchiveKey(t *testing.T) {
	assert.Equal(t, "processes/abc/oficio.pdf", ArchiveKey("abc", "oficio.pdf"))
	assert.Equal(t, "processes/abc/a_b.pdf", ArchiveKey("abc", "a/b.pdf"))
	assert.Equal(t, "processes/abc/document", ArchiveKey("abc", "  "))
	assert.Equal(t, "processes/abc/document", ArchiveKey("abc", ".."))
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t,
		"https://procura-docs.s3.sa-east-1.amazonaws.com/processes/abc/of%C3%ADcio%201.pdf",
		ObjectURL("procura-docs", "sa-east-1", "processes/abc/ofício 1.pdf"))
}

func TestNewS3ClientRequiresSettings(t *testing.T) {
	ctx := context.Background()
	_, err := NewS3Client(ctx, &config.Config{})
	assert.ErrorContains(t, err, "credentials")

	_, err = NewS3Client(ctx, &config.Config{AwsAccessKey: "k", AwsSecretKey: "s"})
	assert.ErrorContains(t, err, "AWS_REGION")

	_, err = NewS3Client(ctx, &config.Config{AwsAccessKey: "k", AwsSecretKey: "s", AwsRegion: "sa-east-1"})
	assert.ErrorContains(t, err, "bucket")
}
