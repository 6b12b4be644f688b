package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute_UnknownCommand(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"f1gpt", "refuel"}
	err := Execute()
	assert.ErrorContains(t, err, "unknown command")
}

func TestExecute_Version(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"f1gpt", "version"}
	assert.NoError(t, Execute())
}

func TestExecute_Help(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"f1gpt", "help"}
	assert.NoError(t, Execute())
}
