package eventstream_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/eventstream"
)

// buildFrame assembles a single binary EventStream frame from header
// key/value string pairs and a payload, computing valid CRC-32 checksums.
func buildFrame(headers map[string]string, payload []byte) []byte {
	var headerBuf bytes.Buffer
	for name, value := range headers {
		headerBuf.WriteByte(byte(len(name)))
		headerBuf.WriteString(name)
		headerBuf.WriteByte(7) // type: string
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
		headerBuf.Write(lenBuf[:])
		headerBuf.WriteString(value)
	}
	headerBytes := headerBuf.Bytes()

	totalLength := uint32(4 + 4 + 4 + len(headerBytes) + len(payload) + 4)

	var prelude [8]byte
	binary.BigEndian.PutUint32(prelude[0:4], totalLength)
	binary.BigEndian.PutUint32(prelude[4:8], uint32(len(headerBytes)))
	preludeCRC := crc32.ChecksumIEEE(prelude[:])

	var frame bytes.Buffer
	frame.Write(prelude[:])
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], preludeCRC)
	frame.Write(crcBuf[:])
	frame.Write(headerBytes)
	frame.Write(payload)

	messageCRC := crc32.ChecksumIEEE(frame.Bytes())
	binary.BigEndian.PutUint32(crcBuf[:], messageCRC)
	frame.Write(crcBuf[:])

	return frame.Bytes()
}

func chunkFrame(anthropicEventJSON string) []byte {
	b64 := base64.StdEncoding.EncodeToString([]byte(anthropicEventJSON))
	payload := []byte(`{"bytes":"` + b64 + `"}`)
	return buildFrame(map[string]string{
		":message-type": "event",
		":event-type":   "chunk",
		":content-type": "application/json",
	}, payload)
}

var _ = Describe("Parser", func() {
	It("decodes a chunk frame into the raw Anthropic event bytes", func() {
		src := bytes.NewReader(chunkFrame(`{"type":"message_start","message":{"id":"msg_1"}}`))
		p := eventstream.NewParser(src)

		payload, err := p.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(Equal(`{"type":"message_start","message":{"id":"msg_1"}}`))

		_, err = p.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("decodes multiple frames in sequence", func() {
		var buf bytes.Buffer
		buf.Write(chunkFrame(`{"type":"message_start"}`))
		buf.Write(chunkFrame(`{"type":"message_stop"}`))

		p := eventstream.NewParser(&buf)

		first, err := p.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(first)).To(ContainSubstring("message_start"))

		second, err := p.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(second)).To(ContainSubstring("message_stop"))

		_, err = p.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("silently drops non-chunk frames such as the initial-response preamble", func() {
		var buf bytes.Buffer
		buf.Write(buildFrame(map[string]string{
			":message-type": "event",
			":event-type":   "initial-response",
		}, []byte(`{}`)))
		buf.Write(chunkFrame(`{"type":"message_start"}`))

		p := eventstream.NewParser(&buf)
		payload, err := p.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(ContainSubstring("message_start"))
	})

	It("raises an ExceptionError for exception-typed frames", func() {
		frame := buildFrame(map[string]string{
			":message-type":   "exception",
			":exception-type": "ThrottlingException",
		}, []byte(`{"message":"Too many requests"}`))

		p := eventstream.NewParser(bytes.NewReader(frame))
		_, err := p.Next()

		var excErr *eventstream.ExceptionError
		Expect(err).To(BeAssignableToTypeOf(excErr))
		excErr = err.(*eventstream.ExceptionError)
		Expect(excErr.Type).To(Equal("ThrottlingException"))
		Expect(string(excErr.Payload)).To(ContainSubstring("Too many requests"))
	})

	It("raises a ParseError when the chunk payload is not valid base64", func() {
		payload := []byte(`{"bytes":"not-valid-base64!!"}`)
		frame := buildFrame(map[string]string{
			":message-type": "event",
			":event-type":   "chunk",
		}, payload)

		p := eventstream.NewParser(bytes.NewReader(frame))
		_, err := p.Next()

		var parseErr *eventstream.ParseError
		Expect(err).To(BeAssignableToTypeOf(parseErr))
	})
})
