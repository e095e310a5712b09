// Package natstest starts in-memory NATS servers for package tests.
package natstest

import (
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
)

// StartServer starts a JetStream-enabled NATS server on a random port and
// connects to it. Both are shut down when the test ends.
func StartServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	return natsServer, natsConnection
}

// JetStream returns a JetStream context on a fresh test server.
func JetStream(t *testing.T) (nats.JetStreamContext, *nats.Conn) {
	t.Helper()

	_, natsConnection := StartServer(t)

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		t.Fatalf("Failed to create JetStream context: %v", err)
	}

	return jetstreamContext, natsConnection
}
