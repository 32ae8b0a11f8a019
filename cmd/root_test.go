package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/vdfcache/config"
)

func TestAddFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	path := AddFlags(flags, &cfg)

	require.NoError(t, flags.Parse([]string{
		"-c", "/etc/vdfcache.toml",
		"--data-folder", "/data",
		"--capacity", "3",
		"--modulus", "0xff",
		"--worker-slice", "250ms",
		"--verify-solutions",
		"--api-listen", "127.0.0.1:4000",
		"--log-encoder", "json",
	}))
	require.Equal(t, "/etc/vdfcache.toml", *path)
	require.Equal(t, "/data", cfg.DataDir)
	require.Equal(t, 3, cfg.Pool.Capacity)
	require.Equal(t, "255", cfg.Pool.Modulus.String())
	require.Equal(t, 250*time.Millisecond, cfg.Worker.Slice)
	require.True(t, cfg.Worker.VerifySolutions)
	require.Equal(t, "127.0.0.1:4000", cfg.API.Listen)
	require.Equal(t, config.JSONLogEncoder, cfg.LOGGING.Encoder)
	require.Equal(t, "255", flags.Lookup("modulus").Value.String())

	require.Error(t, flags.Parse([]string{"--modulus", "ff"}))
}
