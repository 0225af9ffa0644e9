// Package testdeps starts throwaway containers for integration tests. Every
// helper skips the calling test under -short.
package testdeps

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcNats "github.com/testcontainers/testcontainers-go/modules/nats"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcValKey "github.com/testcontainers/testcontainers-go/modules/valkey"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage = "postgres:17-alpine"
	ValkeyImage   = "docker.io/valkey/valkey:latest"
	NatsImage     = "nats:latest"

	DBUser     = "lingua"
	DBPassword = "l1ngu@"
	DBName     = "lingua_test"

	NatsUser     = "lingua"
	NatsPassword = "s3cr3t"

	// OccurrenceValue is the number of readiness log lines postgres prints on first boot.
	OccurrenceValue  = 2
	TimeoutInSeconds = 60
)

func skipShort(t *testing.T, what string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping %s container test in short mode", what)
	}
}

func terminateOnCleanup(ctx context.Context, t *testing.T, c testcontainers.Container, what string) {
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			util.Log(ctx).WithError(err).WithField("container", what).Warn("failed to terminate container")
		}
	})
}

// Postgres starts a PostgreSQL container and returns its connection url.
func Postgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	skipShort(t, "postgres")

	pgContainer, err := tcPostgres.Run(ctx, PostgresImage,
		tcPostgres.WithDatabase(DBName),
		tcPostgres.WithUsername(DBUser),
		tcPostgres.WithPassword(DBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(OccurrenceValue).
				WithStartupTimeout(TimeoutInSeconds*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	terminateOnCleanup(ctx, t, pgContainer, "postgres")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// Valkey starts a Valkey container and returns its redis:// url. The url is
// accepted by both the redis and valkey clients.
func Valkey(ctx context.Context, t *testing.T) string {
	t.Helper()
	skipShort(t, "valkey")

	valkeyContainer, err := tcValKey.Run(ctx, ValkeyImage)
	require.NoError(t, err, "failed to start valkey container")
	terminateOnCleanup(ctx, t, valkeyContainer, "valkey")

	conn, err := valkeyContainer.ConnectionString(ctx)
	require.NoError(t, err)
	return conn
}

// Nats starts a JetStream enabled NATS container and returns its nats:// url
// with credentials.
func Nats(ctx context.Context, t *testing.T) string {
	t.Helper()
	skipShort(t, "nats")

	natsContainer, err := tcNats.Run(ctx, NatsImage,
		testcontainers.WithCmdArgs("--js"),
		tcNats.WithUsername(NatsUser),
		tcNats.WithPassword(NatsPassword),
		testcontainers.WithWaitStrategy(wait.ForLog("Server is ready")),
	)
	require.NoError(t, err, "failed to start nats container")
	terminateOnCleanup(ctx, t, natsContainer, "nats")

	conn, err := natsContainer.ConnectionString(ctx)
	require.NoError(t, err)

	u, err := url.Parse(conn)
	require.NoError(t, err, fmt.Sprintf("unexpected nats url %q", conn))
	u.User = url.UserPassword(NatsUser, NatsPassword)
	return u.String()
}
