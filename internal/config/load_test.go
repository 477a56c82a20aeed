package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bgqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BGQUEUE_SERVER_SECRET", testSecret)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 50, cfg.Runner.BatchSize)
	assert.Equal(t, 20*time.Second, cfg.Runner.TimeLimit)
	assert.Equal(t, 0.9, cfg.Runner.MemoryThreshold)
	assert.Equal(t, 15, cfg.Runner.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Supervisor.Interval)
	assert.Equal(t, "/dispatch", cfg.Dispatch.Path)
	assert.Equal(t, time.Second, cfg.Dispatch.Timeout)
	assert.Empty(t, cfg.Queues)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  base_url: "http://localhost:9090"
  secret: "`+testSecret+`"
store:
  driver: redis
lock:
  driver: file
  dir: /tmp/bgqueue-locks
  ttl: 2m
runner:
  batch_size: 10
queues:
  - name: media
    kind: media
    endpoint: http://app.local/work/media
    failure_endpoint: http://app.local/work/exclude
  - name: uploads
    kind: image
    max_attempts: 3
    endpoint: http://app.local/work/image
`)
	t.Setenv("BGQUEUE_RUNNER_BATCH_SIZE", "25")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "file", cfg.Lock.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, 25, cfg.Runner.BatchSize)
	require.Len(t, cfg.Queues, 2)
	assert.Equal(t, "uploads", cfg.Queues[1].Name)
	assert.Equal(t, 3, cfg.Queues[1].MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"short secret": `
server:
  secret: short
`,
		"unknown kind": `
server:
  secret: "` + testSecret + `"
queues:
  - name: media
    kind: video
    endpoint: http://app.local/work
`,
		"duplicate queue": `
server:
  secret: "` + testSecret + `"
queues:
  - name: media
    kind: media
    endpoint: http://app.local/work
  - name: media
    kind: image
    endpoint: http://app.local/work
`,
		"lock outlives supervisor": `
server:
  secret: "` + testSecret + `"
lock:
  ttl: 10m
`,
		"lock shorter than time budget": `
server:
  secret: "` + testSecret + `"
lock:
  ttl: 10s
`,
		"unknown lock driver": `
server:
  secret: "` + testSecret + `"
lock:
  driver: etcd
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
