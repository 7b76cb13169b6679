package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "migrate")
	assert.NotNil(t, root.RunE)
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "sideways"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown migrate command "sideways"`)
}

func TestMigrateRejectsTooManyArgs(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "up", "3", "extra"})

	require.Error(t, root.Execute())
}
