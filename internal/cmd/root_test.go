package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := parseID("order-id", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"0", "-3", "abc", ""} {
		_, err := parseID("order-id", raw)
		assert.Error(t, err, raw)
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"},
		{"stock", "show"},
		{"stock", "adjust"},
		{"stock", "set"},
		{"order", "show"},
		{"order", "status"},
		{"order", "payment"},
		{"product", "delete"},
		{"cart", "validate"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestNegativeDeltaIsAnArgument(t *testing.T) {
	flags := stockAdjustCmd.Flags()
	require.NoError(t, flags.Parse([]string{"7", "-3"}))
	assert.Equal(t, []string{"7", "-3"}, flags.Args())
}

func TestArgumentValidation(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"stock", "adjust", "1"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	assert.Error(t, err)
}
