package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-editor/internal/config"
)

const (
	embeddedServerName = "tts-editor"
	// Synthesized PCM travels base64 encoded inside JSON replies.
	embeddedMaxPayload = 64 * 1024 * 1024
	serverReadyTimeout = 10 * time.Second
)

// ErrServerNotReady indicates that the embedded NATS server did not start.
var ErrServerNotReady = errors.New("embedded NATS server not ready")

// connectNATS dials the configured server, starting an embedded one on the
// configured address first when asked to. The returned function closes the
// connection and stops the embedded server.
func connectNATS(cfg config.NATSConfig, log *logger.Logger) (*nats.Conn, func() error, error) {
	if !cfg.Embedded {
		natsConnection, err := nats.Connect(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
		}

		return natsConnection, closeConnection(natsConnection, nil), nil
	}

	natsServer, err := startEmbeddedServer(cfg)
	if err != nil {
		return nil, nil, err
	}

	log.System("Embedded NATS server listening on %s", natsServer.ClientURL())

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()

		return nil, nil, fmt.Errorf("failed to connect to embedded NATS server: %w", err)
	}

	return natsConnection, closeConnection(natsConnection, natsServer), nil
}

func closeConnection(natsConnection *nats.Conn, natsServer *server.Server) func() error {
	return func() error {
		err := natsConnection.Flush()
		natsConnection.Close()

		if natsServer != nil {
			natsServer.Shutdown()
			natsServer.WaitForShutdown()
		}

		if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			return fmt.Errorf("failed to flush NATS connection: %w", err)
		}

		return nil
	}
}

func startEmbeddedServer(cfg config.NATSConfig) (*server.Server, error) {
	host, port, err := listenAddress(cfg.URL)
	if err != nil {
		return nil, err
	}

	natsServer, err := server.NewServer(&server.Options{
		ServerName: embeddedServerName,
		Host:       host,
		Port:       port,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		MaxPayload: embeddedMaxPayload,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	go natsServer.Start()

	if !natsServer.ReadyForConnections(serverReadyTimeout) {
		natsServer.Shutdown()

		return nil, ErrServerNotReady
	}

	return natsServer, nil
}

// listenAddress extracts host and port from a nats:// URL. A URL without a
// port listens on a random one.
func listenAddress(rawURL string) (string, int, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse NATS URL %q: %w", rawURL, err)
	}

	if parsed.Port() == "" {
		return parsed.Hostname(), server.RANDOM_PORT, nil
	}

	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse NATS port %q: %w", parsed.Port(), err)
	}

	return parsed.Hostname(), port, nil
}
