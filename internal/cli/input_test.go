package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPassword_FromTerminal(t *testing.T) {
	origTerm, origRead := stdinIsTerminal, readPassword
	t.Cleanup(func() { stdinIsTerminal, readPassword = origTerm, origRead })
	stdinIsTerminal = func() bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }

	var w bytes.Buffer
	pw, err := getPassword(strings.NewReader("ignored\n"), &w)

	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
	assert.Contains(t, w.String(), "パスワード")
}

func TestGetPassword_TerminalError(t *testing.T) {
	origTerm, origRead := stdinIsTerminal, readPassword
	t.Cleanup(func() { stdinIsTerminal, readPassword = origTerm, origRead })
	stdinIsTerminal = func() bool { return true }
	readPassword = func(int) ([]byte, error) { return nil, errors.New("no tty") }

	_, err := getPassword(strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestGetPassword_PipedWithoutNewline(t *testing.T) {
	origTerm := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = origTerm })
	stdinIsTerminal = func() bool { return false }

	pw, err := getPassword(strings.NewReader("pw"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)
}

func TestConfirm(t *testing.T) {
	cases := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false}
	for in, want := range cases {
		assert.Equal(t, want, confirm(strings.NewReader(in), &bytes.Buffer{}, "削除しますか？"), "%q", in)
	}
}
