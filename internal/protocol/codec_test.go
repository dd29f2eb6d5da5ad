package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogin(t *testing.T) {
	line := []byte(`{"tag":"Login","loginName":"alice","loginPassword":"s3cret"}`)
	msg, err := Decode(line)
	require.NoError(t, err)

	login, ok := msg.(*Login)
	require.True(t, ok, "expected *Login, got %T", msg)
	assert.Equal(t, "alice", login.LoginName)
	assert.Equal(t, "s3cret", login.LoginPassword)
}

func TestDecodeVersionMessage(t *testing.T) {
	line := []byte(`{"tag":"VersionMessage","peerProtocolVersion":[0,3,1]}`)
	msg, err := Decode(line)
	require.NoError(t, err)

	version, ok := msg.(*VersionMessage)
	require.True(t, ok, "expected *VersionMessage, got %T", msg)
	assert.Equal(t, []int{0, 3, 1}, version.PeerProtocolVersion)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"tag":"Teleport","x":1}`))
	var tagErr *UnknownTagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, "Teleport", tagErr.TagName)
}

func TestDecodeMissingTag(t *testing.T) {
	_, err := Decode([]byte(`{"loginName":"alice"}`))
	var tagErr *UnknownTagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, "", tagErr.TagName)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte(`this is not json`))
	require.Error(t, err)
	var tagErr *UnknownTagError
	assert.False(t, errors.As(err, &tagErr), "garbage should not be an unknown-tag error")
}

func TestEncodeInjectsTag(t *testing.T) {
	data, err := Encode(&ServerError{Content: "Incompatible Version."})
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Equal(t, "Error", obj["tag"])
	assert.Equal(t, "Incompatible Version.", obj["content"])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	messages := []Message{
		&VersionMessage{PeerProtocolVersion: []int{0, 3, 1}},
		&GameInit{GameInitName: "g1", GameMap: "m", GameMode: "mode", NumPlayers: 2},
		&PlayerConfig{PlayerCiv: "x", PlayerTeam: 1, PlayerReady: true},
		&ChatFromThread{ChatFromTOrign: "alice", ChatFromTContent: "hi"},
		&GameStartAnswer{HostMap: map[string]string{"alice": "10.0.0.1"}},
	}

	for _, in := range messages {
		data, err := Encode(in)
		require.NoError(t, err, "encoding %s", in.Tag())
		out, err := Decode(data)
		require.NoError(t, err, "decoding %s", in.Tag())
		assert.Equal(t, in, out)
	}
}

// rwc adapts a buffer pair into the io.ReadWriteCloser the codec expects.
type rwc struct {
	io.Reader
	io.Writer
}

func (rwc) Close() error { return nil }

func TestCodecUniversalNewlines(t *testing.T) {
	input := "{\"tag\":\"GameQuery\"}\r\n" +
		"{\"tag\":\"GameLeave\"}\r" +
		"{\"tag\":\"Logout\"}\n"
	c := NewCodec(rwc{Reader: bytes.NewBufferString(input), Writer: io.Discard})

	tags := []string{}
	for {
		msg, err := c.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		tags = append(tags, msg.Tag())
	}
	assert.Equal(t, []string{"GameQuery", "GameLeave", "Logout"}, tags)
}

func TestCodecSkipsBlankLines(t *testing.T) {
	input := "\n\r\n{\"tag\":\"GameQuery\"}\n\n"
	c := NewCodec(rwc{Reader: bytes.NewBufferString(input), Writer: io.Discard})

	msg, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, TagGameQuery, msg.Tag())

	_, err = c.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCodecReadReportsDecodeError(t *testing.T) {
	input := "not json\n{\"tag\":\"GameQuery\"}\n"
	c := NewCodec(rwc{Reader: bytes.NewBufferString(input), Writer: io.Discard})

	_, err := c.Read()
	var dec *DecodeError
	require.ErrorAs(t, err, &dec)

	// The bad line does not poison the stream.
	msg, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, TagGameQuery, msg.Tag())
}

func TestCodecReadsLinesBeyondDefaultScannerLimit(t *testing.T) {
	// Larger than bufio's 64 KiB default token size.
	content := strings.Repeat("a", 100_000)
	input := `{"tag":"ChatFromClient","chatFromCContent":"` + content + `"}` + "\n"
	c := NewCodec(rwc{Reader: bytes.NewBufferString(input), Writer: io.Discard})

	msg, err := c.Read()
	require.NoError(t, err)
	chat, ok := msg.(*ChatFromClient)
	require.True(t, ok, "expected *ChatFromClient, got %T", msg)
	assert.Equal(t, content, chat.ChatFromCContent)
}

func TestCodecRejectsOversizedLine(t *testing.T) {
	input := `{"tag":"ChatFromClient","chatFromCContent":"` +
		strings.Repeat("a", maxLineBytes) + `"}` + "\n"
	c := NewCodec(rwc{Reader: bytes.NewBufferString(input), Writer: io.Discard})

	_, err := c.Read()
	require.Error(t, err)
	// The scanner cannot recover mid-token, so this is fatal, not a
	// skippable decode failure.
	var dec *DecodeError
	assert.False(t, errors.As(err, &dec))
}

func TestCodecWriteAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(rwc{Reader: bytes.NewBuffer(nil), Writer: &buf})

	require.NoError(t, c.Write(&ServerMessage{Content: "Version accepted."}))
	out := buf.String()
	assert.True(t, bytes.HasSuffix([]byte(out), []byte("\n")), "line not terminated: %q", out)

	msg, err := Decode(bytes.TrimSpace(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, &ServerMessage{Content: "Version accepted."}, msg)
}
