package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()

	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func subscribe(t *testing.T, url, subject string) chan *nats.Msg {
	t.Helper()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	ch := make(chan *nats.Msg, 8)
	_, err = nc.ChanSubscribe(subject, ch)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	return ch
}

func receive(t *testing.T, ch chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestNew_DisabledWithoutURL(t *testing.T) {
	pub, err := New(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, pub)

	// Nil publisher methods are no-ops.
	pub.DocumentIngested(context.Background(), "acme", "faq.txt", 3)
	pub.ChatAnswered(context.Background(), "acme", "rag", "qwen2.5:7b", 0.8, 2, time.Second)
	pub.Close()
}

func TestPublisher_DocumentEvents(t *testing.T) {
	server := startTestNATSServer(t)
	ch := subscribe(t, server.ClientURL(), "ragd.document.>")

	pub, err := New(Config{URL: server.ClientURL()}, zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	ctx := context.Background()
	pub.DocumentIngested(ctx, "acme", "faq.txt", 4)
	pub.DocumentUpdated(ctx, "acme", "faq.txt", 5)
	pub.DocumentDeleted(ctx, "acme", "faq.txt")

	msg := receive(t, ch)
	assert.Equal(t, "ragd.document.ingested", msg.Subject)
	var evt DocumentEvent
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	assert.Equal(t, "acme", evt.Tenant)
	assert.Equal(t, "faq.txt", evt.Filename)
	assert.Equal(t, 4, evt.ChunkCount)
	assert.False(t, evt.Timestamp.IsZero())

	msg = receive(t, ch)
	assert.Equal(t, "ragd.document.updated", msg.Subject)

	msg = receive(t, ch)
	assert.Equal(t, "ragd.document.deleted", msg.Subject)
	// Deleted events carry no chunk count; decode into a fresh value so
	// the omitted field cannot inherit the previous payload's.
	var deleted DocumentEvent
	require.NoError(t, json.Unmarshal(msg.Data, &deleted))
	assert.Equal(t, "acme", deleted.Tenant)
	assert.Zero(t, deleted.ChunkCount)
}

func TestPublisher_ChatAnswered(t *testing.T) {
	server := startTestNATSServer(t)
	ch := subscribe(t, server.ClientURL(), "ragd.chat.answered")

	pub, err := New(Config{URL: server.ClientURL()}, zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	pub.ChatAnswered(context.Background(), "acme", "rag", "qwen2.5:7b", 0.825, 2, 120*time.Millisecond)

	msg := receive(t, ch)
	var evt ChatEvent
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	assert.Equal(t, "acme", evt.Tenant)
	assert.Equal(t, "rag", evt.Mode)
	assert.Equal(t, "qwen2.5:7b", evt.Model)
	assert.InDelta(t, 0.825, evt.RSQ, 1e-9)
	assert.Equal(t, 2, evt.Sources)
	assert.Equal(t, 120*time.Millisecond, evt.Duration)
}

func TestPublisher_SubjectPrefix(t *testing.T) {
	server := startTestNATSServer(t)
	ch := subscribe(t, server.ClientURL(), "custom.document.ingested")

	pub, err := New(Config{URL: server.ClientURL(), SubjectPrefix: "custom"}, zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	pub.DocumentIngested(context.Background(), "acme", "faq.txt", 1)
	receive(t, ch)
}
