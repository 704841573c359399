package cli_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bsbernd/ql-fstest/internal/cli"
)

func TestRun_HelpPrintsUsageAndExitsZero(t *testing.T) {
	var out, errOut bytes.Buffer
	code := cli.Run(nil, &out, &errOut, []string{"fstest", "--help"}, nil, nil)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "Usage: fstest")
}

func TestRun_MissingDirectoryIsAnError(t *testing.T) {
	var out, errOut bytes.Buffer
	code := cli.Run(nil, &out, &errOut, []string{"fstest"}, nil, nil)
	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "test directory")
}

func TestRun_HappyPathShortTimeout(t *testing.T) {
	dir := t.TempDir()

	var out, errOut bytes.Buffer
	args := []string{
		"fstest",
		"--percent", "60",
		"--timeout", "1",
		"--min-bits", "8",
		"--max-bits", "10",
		dir,
	}
	code := cli.Run(nil, &out, &errOut, args, nil, nil)
	require.Equal(t, 0, code, fmt.Sprintf("stderr: %s", errOut.String()))
	require.Contains(t, out.String(), "fstest v0.0")
}
