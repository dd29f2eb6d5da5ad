package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// UnknownTagError reports a message whose discriminator names no known
// variant. During the handshake this is fatal; afterwards the session answers
// with a ServerError and keeps the connection open.
type UnknownTagError struct {
	TagName string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown message tag %q", e.TagName)
}

// DecodeError marks a line that could not be parsed into a message. The
// session answers these on the socket and keeps reading; everything else
// returned by Codec.Read is an I/O failure and ends the session.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses one wire line into its message variant.
func Decode(line []byte) (Message, error) {
	var env struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decoding message envelope: %w", err)
	}

	decode := func(m Message) (Message, error) {
		if err := json.Unmarshal(line, m); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Tag, err)
		}
		return m, nil
	}

	switch env.Tag {
	case TagVersionMessage:
		return decode(&VersionMessage{})
	case TagLogin:
		return decode(&Login{})
	case TagAddPlayer:
		return decode(&AddPlayer{})
	case TagGameQuery:
		return &GameQuery{}, nil
	case TagGameInit:
		return decode(&GameInit{})
	case TagGameJoin:
		return decode(&GameJoin{})
	case TagGameLeave:
		return &GameLeave{}, nil
	case TagGameInfo:
		return &GameInfo{}, nil
	case TagGameClosedByHost:
		return &GameClosedByHost{}, nil
	case TagGameConfig:
		return decode(&GameConfig{})
	case TagPlayerConfig:
		return decode(&PlayerConfig{})
	case TagGameStart:
		return &GameStart{}, nil
	case TagGameStartedByHost:
		return &GameStartedByHost{}, nil
	case TagGameOver:
		return &GameOver{}, nil
	case TagLogout:
		return &Logout{}, nil
	case TagChatFromClient:
		return decode(&ChatFromClient{})
	case TagChatFromThread:
		return decode(&ChatFromThread{})
	case TagBroadcast:
		return decode(&Broadcast{})
	case TagMessage:
		return decode(&ServerMessage{})
	case TagError:
		return decode(&ServerError{})
	case TagGameQueryAnswer:
		return decode(&GameQueryAnswer{})
	case TagGameInfoAnswer:
		return decode(&GameInfoAnswer{})
	case TagGameStartAnswer:
		return decode(&GameStartAnswer{})
	case TagChatOut:
		return decode(&ChatOut{})
	default:
		return nil, &UnknownTagError{TagName: env.Tag}
	}
}

// Encode serializes a message to one JSON object with the tag discriminator
// injected. No trailing newline; the writer frames lines.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", m.Tag(), err)
	}

	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", m.Tag(), err)
	}
	tag, err := json.Marshal(m.Tag())
	if err != nil {
		return nil, fmt.Errorf("encoding tag: %w", err)
	}
	obj["tag"] = tag

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Tag(), err)
	}
	return out, nil
}

// scanUniversalLines is a bufio.SplitFunc treating LF, CR and CRLF as line
// terminators.
func scanUniversalLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' {
			return i + 1, data[:i], nil
		}
		if b == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Need one more byte to tell CR from CRLF.
			return 0, nil, nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Codec frames tagged JSON messages over a byte stream. Reads are owned by a
// single goroutine; writes are mutex-serialized so the processor and the
// reader's decode-error replies never interleave on the wire.
type Codec struct {
	scanner *bufio.Scanner
	closer  io.Closer

	wmu sync.Mutex
	w   io.Writer
}

// maxLineBytes caps one wire line. A peer exceeding it ends its session with
// a read error; the scanner cannot resynchronize mid-token, so this is not a
// recoverable decode failure.
const maxLineBytes = 1 << 20

// NewCodec wraps a connection. rwc is closed by Close.
func NewCodec(rwc io.ReadWriteCloser) *Codec {
	sc := bufio.NewScanner(rwc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(scanUniversalLines)
	return &Codec{scanner: sc, closer: rwc, w: rwc}
}

// Read returns the next decoded message. Blank lines are skipped. Returns
// io.EOF when the peer closes the stream.
func (c *Codec) Read() (Message, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		m, err := Decode(line)
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		return m, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading message line: %w", err)
	}
	return nil, io.EOF
}

// Write encodes m and sends it as one line.
func (c *Codec) Write(m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Codec) Close() error {
	return c.closer.Close()
}
