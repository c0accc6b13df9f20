//go:build integration

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nntpvault/nntpvault/pkg/spool"
)

// localstackHelper manages the Localstack container for integration tests.
type localstackHelper struct {
	container testcontainers.Container
	endpoint  string
	client    *awss3.Client
}

// newLocalstackHelper starts a Localstack container or connects to an
// existing one via LOCALSTACK_ENDPOINT.
func newLocalstackHelper(t *testing.T) *localstackHelper {
	t.Helper()
	ctx := context.Background()

	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		helper := &localstackHelper{endpoint: endpoint}
		helper.createClient(t)
		return helper
	}

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":              "s3",
			"DEFAULT_REGION":        "us-east-1",
			"EAGER_SERVICE_LOADING": "1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4566/tcp"),
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	helper := &localstackHelper{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	helper.createClient(t)

	return helper
}

// createClient creates an S3 client configured for Localstack.
func (lh *localstackHelper) createClient(t *testing.T) {
	t.Helper()

	client, err := NewClientFromConfig(context.Background(),
		lh.endpoint, "us-east-1", "test", "test", true)
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	lh.client = client
}

// createBucket creates a test bucket.
func (lh *localstackHelper) createBucket(t *testing.T, bucket string) {
	t.Helper()

	_, err := lh.client.CreateBucket(context.Background(), &awss3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		t.Fatalf("failed to create bucket %q: %v", bucket, err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	helper := newLocalstackHelper(t)
	bucket := fmt.Sprintf("spool-test-%d", time.Now().UnixNano())
	helper.createBucket(t, bucket)

	store, err := New(context.Background(), Config{
		Client:    helper.client,
		Bucket:    bucket,
		KeyPrefix: "spool/",
	})
	if err != nil {
		t.Fatalf("failed to create S3 spool: %v", err)
	}
	return store
}

func testEnvelope(folderID, segmentID string, body []byte) *spool.Envelope {
	return &spool.Envelope{
		FolderID:      folderID,
		Version:       1,
		SegmentID:     segmentID,
		UsenetSubject: "ABCDEFGHIJKLMNOPQRST",
		PlainSHA256:   fmt.Sprintf("%064x", len(body)),
		PlainLength:   uint32(len(body)),
		Body:          body,
	}
}

func TestS3Spool_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	env := testEnvelope("folder-a", "seg-1", []byte("sealed segment body"))
	if err := store.Put(ctx, env); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "folder-a", "seg-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got.Body, env.Body) {
		t.Errorf("Body mismatch")
	}
	if got.UsenetSubject != env.UsenetSubject {
		t.Errorf("UsenetSubject = %q, want %q", got.UsenetSubject, env.UsenetSubject)
	}
}

func TestS3Spool_GetNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Get(ctx, "folder-a", "missing")
	if !errors.Is(err, spool.ErrNotFound) {
		t.Errorf("Get returned %v, want ErrNotFound", err)
	}
}

func TestS3Spool_ListAndDeleteFolder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, ref := range []string{"seg-b", "seg-a"} {
		if err := store.Put(ctx, testEnvelope("folder-a", ref, []byte("x"))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := store.Put(ctx, testEnvelope("folder-b", "seg-z", []byte("x"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	refs, err := store.List(ctx, "folder-a")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(refs) != 2 || refs[0] != "seg-a" || refs[1] != "seg-b" {
		t.Errorf("List = %v, want [seg-a seg-b]", refs)
	}

	if err := store.DeleteFolder(ctx, "folder-a"); err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}
	refs, err = store.List(ctx, "folder-a")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("folder-a refs after DeleteFolder = %v, want empty", refs)
	}

	refs, err = store.List(ctx, "folder-b")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(refs) != 1 {
		t.Errorf("folder-b refs = %v, want one", refs)
	}
}

func TestS3Spool_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Delete(ctx, "folder-a", "never-staged"); err != nil {
		t.Errorf("Delete of missing ref failed: %v", err)
	}
}

func TestS3Spool_Healthcheck(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Healthcheck(ctx); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}
