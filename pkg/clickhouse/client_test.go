package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptions(t *testing.T) {
	opts := buildOptions(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "market",
		User:        "reader",
		Password:    "pw",
		DialTimeout: 5 * time.Second,
		MaxExecTime: 30 * time.Second,
		ReadOnly:    true,
	})
	assert.Equal(t, []string{"ch:9000"}, opts.Addr)
	assert.Equal(t, "market", opts.Auth.Database)
	assert.Equal(t, "reader", opts.Auth.Username)
	assert.Equal(t, clickhouse.Native, opts.Protocol)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
	assert.Equal(t, 30, opts.Settings["max_execution_time"])
	assert.Equal(t, 2, opts.Settings["readonly"])
}

func TestBuildOptions_HTTPWritable(t *testing.T) {
	opts := buildOptions(ClientConfig{Host: "ch", Port: 8123, UseHTTP: true})
	assert.Equal(t, clickhouse.HTTP, opts.Protocol)
	assert.Empty(t, opts.Settings)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.ErrorContains(t, err, "host is required")
}
