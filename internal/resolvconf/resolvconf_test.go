package resolvconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConf(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBasicServersAndSearch(t *testing.T) {
	path := writeTempConf(t, "nameserver 192.0.2.1\nnameserver 192.0.2.2\nsearch example.com corp.example.com\noptions ndots:2\n")
	t.Setenv("RES_CONF", path)
	t.Setenv("ADNS_RES_CONF", "")
	t.Setenv("RES_CONF_TEXT", "")
	t.Setenv("ADNS_RES_CONF_TEXT", "")
	t.Setenv("RES_OPTIONS", "")
	t.Setenv("ADNS_RES_OPTIONS", "")
	t.Setenv("LOCALDOMAIN", "")
	t.Setenv("ADNS_LOCALDOMAIN", "")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "192.0.2.1", cfg.Servers[0].String())
	assert.Equal(t, []string{"example.com", "corp.example.com"}, cfg.Search)
	assert.Equal(t, 2, cfg.Ndots)
}

func TestSortlistClassDefaultAndExplicitMask(t *testing.T) {
	path := writeTempConf(t, "nameserver 192.0.2.1\nsortlist 10.0.0.0 172.16.0.0/255.255.0.0 192.0.2.0/24\n")
	t.Setenv("RES_CONF", path)
	t.Setenv("ADNS_RES_CONF", "")
	t.Setenv("RES_CONF_TEXT", "")
	t.Setenv("ADNS_RES_CONF_TEXT", "")
	t.Setenv("RES_OPTIONS", "")
	t.Setenv("ADNS_RES_OPTIONS", "")
	t.Setenv("LOCALDOMAIN", "")
	t.Setenv("ADNS_LOCALDOMAIN", "")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	require.Len(t, cfg.Sortlist, 3)
	assert.Equal(t, "255.0.0.0", cfg.Sortlist[0].Mask.String())   // Class A default
	assert.Equal(t, "255.255.0.0", cfg.Sortlist[1].Mask.String()) // Explicit dotted mask
	assert.Equal(t, "255.255.255.0", cfg.Sortlist[2].Mask.String())
}

func TestClearnameserversThenReadd(t *testing.T) {
	path := writeTempConf(t, "nameserver 192.0.2.1\nclearnameservers\nnameserver 192.0.2.9\n")
	t.Setenv("RES_CONF", path)
	t.Setenv("ADNS_RES_CONF", "")
	t.Setenv("RES_CONF_TEXT", "")
	t.Setenv("ADNS_RES_CONF_TEXT", "")
	t.Setenv("RES_OPTIONS", "")
	t.Setenv("ADNS_RES_OPTIONS", "")
	t.Setenv("LOCALDOMAIN", "")
	t.Setenv("ADNS_LOCALDOMAIN", "")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "192.0.2.9", cfg.Servers[0].String())
}

func TestResOptionsEnvOverridesNdots(t *testing.T) {
	path := writeTempConf(t, "nameserver 192.0.2.1\noptions ndots:1\n")
	t.Setenv("RES_CONF", path)
	t.Setenv("ADNS_RES_CONF", "")
	t.Setenv("RES_CONF_TEXT", "")
	t.Setenv("ADNS_RES_CONF_TEXT", "")
	t.Setenv("RES_OPTIONS", "ndots:5")
	t.Setenv("ADNS_RES_OPTIONS", "")
	t.Setenv("LOCALDOMAIN", "")
	t.Setenv("ADNS_LOCALDOMAIN", "")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Ndots)
}

func TestNoEnvSuppressesEnvironment(t *testing.T) {
	t.Setenv("RES_OPTIONS", "ndots:9")
	cfg, err := Load(LoadOptions{NoEnv: true})
	require.NoError(t, err)
	assert.NotEqual(t, 9, cfg.Ndots)
}
