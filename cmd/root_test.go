package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"geocode", "nearest", "list", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "yardfinder", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestGeocodeCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "output", "report", "keep-failed", "concurrency", "progress"} {
		assert.NotNil(t, geocodeCmd.Flags().Lookup(name), "geocode should have --%s flag", name)
	}
	assert.Equal(t, "0", geocodeCmd.Flags().Lookup("concurrency").DefValue)
	assert.Equal(t, "false", geocodeCmd.Flags().Lookup("keep-failed").DefValue)
}

func TestNearestCommand_Flags(t *testing.T) {
	for _, name := range []string{"lat", "lon", "place", "county", "yard", "top", "data", "json", "geojson"} {
		assert.NotNil(t, nearestCmd.Flags().Lookup(name), "nearest should have --%s flag", name)
	}
	top := nearestCmd.Flags().Lookup("top")
	require.NotNil(t, top)
	assert.Equal(t, "1", top.DefValue)
}

func TestListCommand_Flags(t *testing.T) {
	for _, name := range []string{"county", "yard", "data", "geojson", "counties"} {
		assert.NotNil(t, listCmd.Flags().Lookup(name), "list should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
