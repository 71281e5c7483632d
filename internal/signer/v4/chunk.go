package v4

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
	"strings"
)

// DefaultChunkSize is the payload size of each aws-chunked frame.
const DefaultChunkSize = 64 * 1024

const (
	chunkAlgorithm = "AWS4-HMAC-SHA256-PAYLOAD"
	chunkSigPrefix = ";chunk-signature="
	crlf           = "\r\n"
)

// EncodedLength returns the aws-chunked length of a payload of n bytes.
func EncodedLength(n int64, chunkSize int) int64 {
	size := int64(chunkSize)
	full := n / size
	total := full*frameLength(size) + frameLength(0)

	if rem := n % size; rem > 0 {
		total += frameLength(rem)
	}

	return total
}

func frameLength(n int64) int64 {
	return int64(len(strconv.FormatInt(n, 16))+len(chunkSigPrefix)+hex.EncodedLen(32)+len(crlf)) + n + int64(len(crlf))
}

// ChunkEncoder returns a function that wraps a payload in aws-chunked
// frames, each signed with the signature of the frame before it. The seed
// is the request signature.
func (s *Signature) ChunkEncoder(chunkSize int) func(io.Reader) io.Reader {
	return func(r io.Reader) io.Reader {
		return &chunkReader{
			src:     r,
			sig:     s,
			prev:    s.Value,
			payload: make([]byte, chunkSize),
		}
	}
}

// ChunkSignature signs one chunk given the previous signature.
func (s *Signature) ChunkSignature(prev string, chunk []byte) string {
	stringToSign := strings.Join([]string{
		chunkAlgorithm,
		s.AmzDate,
		s.Scope,
		prev,
		EmptyPayloadHash,
		HashHex(chunk),
	}, "\n")

	return hex.EncodeToString(HMAC(s.key, []byte(stringToSign)))
}

type chunkReader struct {
	src     io.Reader
	sig     *Signature
	prev    string
	payload []byte
	out     bytes.Buffer
	done    bool
	err     error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for c.out.Len() == 0 {
		if c.done {
			return 0, io.EOF
		}

		if c.err != nil {
			return 0, c.err
		}

		c.fill()
	}

	return c.out.Read(p)
}

func (c *chunkReader) fill() {
	n, err := io.ReadFull(c.src, c.payload)
	if n > 0 {
		c.frame(c.payload[:n])
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.frame(nil)
		c.done = true
	default:
		c.err = err
	}
}

func (c *chunkReader) frame(chunk []byte) {
	sig := c.sig.ChunkSignature(c.prev, chunk)
	c.prev = sig

	c.out.WriteString(strconv.FormatInt(int64(len(chunk)), 16))
	c.out.WriteString(chunkSigPrefix)
	c.out.WriteString(sig)
	c.out.WriteString(crlf)
	c.out.Write(chunk)
	c.out.WriteString(crlf)
}
