package cleanup

import (
	"context"
	"errors"
	"net/http"
	"testing"

	redispkg "shg-finance/internal/pkg/db/redis"
	"shg-finance/internal/pkg/models"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

type mockGCS struct {
	closed bool
}

func (m *mockGCS) UploadReport(ctx context.Context, report *models.ReconciliationReport) (string, error) {
	return "", nil
}

func (m *mockGCS) Close(ctx context.Context) {
	m.closed = true
}

func TestCleanupResourcesAllNil(t *testing.T) {
	assert.NotPanics(t, func() {
		CleanupResources(context.Background(), nil, nil, nil, nil, nil, nil, nil)
	})
}

func TestCleanupResourcesClosesPublisher(t *testing.T) {
	publisher := &mockCloser{}
	CleanupResources(context.Background(), nil, publisher, nil, nil, nil, nil, nil)
	assert.True(t, publisher.closed)
}

func TestCleanupResourcesPublisherCloseError(t *testing.T) {
	publisher := &mockCloser{err: errors.New("close failed")}
	assert.NotPanics(t, func() {
		CleanupResources(context.Background(), nil, publisher, nil, nil, nil, nil, nil)
	})
	assert.True(t, publisher.closed)
}

func TestCleanupResourcesWithServer(t *testing.T) {
	testServer := &http.Server{Addr: ":0"}
	CleanupResources(context.Background(), testServer, nil, nil, nil, nil, nil, nil)
}

func TestCleanupResourcesWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	testServer := &http.Server{Addr: ":0"}
	assert.NotPanics(t, func() {
		CleanupResources(ctx, testServer, nil, nil, nil, nil, nil, nil)
	})
}

func TestCleanupResourcesClosesRedisAndGCS(t *testing.T) {
	client := redisv9.NewClient(&redisv9.Options{Addr: "localhost:0"})
	gcsClient := &mockGCS{}

	CleanupResources(context.Background(), nil, nil, nil, nil,
		&redispkg.RedisClient{Client: client}, gcsClient, nil)

	assert.True(t, gcsClient.closed)
	assert.Error(t, client.Ping(context.Background()).Err())
}

func TestCleanupResourcesFlushesTracing(t *testing.T) {
	called := false
	CleanupResources(context.Background(), nil, nil, nil, nil, nil, nil, func(ctx context.Context) error {
		called = true
		return errors.New("exporter gone")
	})
	assert.True(t, called)
}
