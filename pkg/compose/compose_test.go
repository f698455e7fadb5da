package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePSLineDelimited(t *testing.T) {
	out := `{"Name":"idp-postgres-1","Service":"postgres","State":"running","Health":"healthy","ExitCode":0}
{"Name":"idp-redis-1","Service":"redis","State":"restarting","Health":"","ExitCode":0}
{"Name":"idp-proxy-1","Service":"proxy","State":"exited","Health":"","ExitCode":137}
`

	rows, err := decodePS(out)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "postgres", rows[0].Service)
	assert.Equal(t, "healthy", rows[0].Health)
	assert.Equal(t, "restarting", rows[1].State)
	assert.Equal(t, 137, rows[2].ExitCode)
}

func TestDecodePSArray(t *testing.T) {
	out := `[{"Name":"idp-minio-1","Service":"minio","State":"running","Health":"starting","ExitCode":0}]`

	rows, err := decodePS(out)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "minio", rows[0].Service)
	assert.Equal(t, "starting", rows[0].Health)
}

func TestDecodePSEmpty(t *testing.T) {
	rows, err := decodePS("\n")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodePSGarbage(t *testing.T) {
	_, err := decodePS("CONTAINER ID  IMAGE")
	assert.Error(t, err)
}

func TestFindService(t *testing.T) {
	rows := []ContainerRow{
		{Service: "postgres", State: "running"},
		{Service: "redis", State: "exited"},
	}

	row, ok := FindService(rows, "redis")
	require.True(t, ok)
	assert.Equal(t, "exited", row.State)

	_, ok = FindService(rows, "minio")
	assert.False(t, ok)
}

func TestComposeArgs(t *testing.T) {
	r := NewCLIRunner("/opt/stackpilot", "docker-compose.yaml", "idp")

	args := r.composeArgs("up", "-d", "--force-recreate", "--no-deps", "postgres")
	assert.Equal(t, []string{
		"compose", "--project-directory", "/opt/stackpilot", "-f", "docker-compose.yaml",
		"-p", "idp", "up", "-d", "--force-recreate", "--no-deps", "postgres",
	}, args)
}

func TestTail(t *testing.T) {
	s := "one\ntwo\n\nthree\nfour\nfive\n"
	assert.Equal(t, "four; five", tail(s, 2))
	assert.Equal(t, "", tail("", 3))
}
