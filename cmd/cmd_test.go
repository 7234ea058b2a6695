package cmd

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"generate-vapid-keys"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "private_key:")
	assert.Contains(t, out.String(), "public_key:")
}

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	setLogLevel("debug")
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	setLogLevel("nonsense")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
