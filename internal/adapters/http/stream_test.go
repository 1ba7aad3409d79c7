package http

import (
	"bytes"
	"testing"
)

func TestWriteEvent(t *testing.T) {
	cases := map[string]struct {
		msg  string
		want string
	}{
		"single line":      {`{"text":"hi"}`, "data: {\"text\":\"hi\"}\n\n"},
		"trailing newline": {"{\"cpu\":1}\n", "data: {\"cpu\":1}\n\n"},
		"embedded newline": {"line one\nline two", "data: line one\ndata: line two\n\n"},
		"crlf":             {"a\r\nb\r\n", "data: a\ndata: b\n\n"},
		"empty":            {"", "data: \n\n"},
	}
	for name, c := range cases {
		var buf bytes.Buffer
		if err := writeEvent(&buf, []byte(c.msg)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if buf.String() != c.want {
			t.Errorf("%s: wrote %q, want %q", name, buf.String(), c.want)
		}
	}
}
