package logger

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("NewLoggerWithWriters", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("writes info messages by default", func() {
		log := NewLoggerWithWriters("info", buf)
		log.Info("hello", zap.String("k", "v"))
		Expect(buf.String()).To(ContainSubstring("hello"))
		Expect(buf.String()).To(ContainSubstring(`"k": "v"`))
	})

	It("suppresses debug messages at info level", func() {
		log := NewLoggerWithWriters("info", buf)
		log.Debug("should not appear")
		Expect(buf.String()).To(BeEmpty())
	})

	It("emits debug messages when level is debug", func() {
		log := NewLoggerWithWriters("debug", buf)
		log.Debug("visible")
		Expect(buf.String()).To(ContainSubstring("visible"))
	})

	It("falls back to info for an unrecognized level", func() {
		log := NewLoggerWithWriters("not-a-level", buf)
		log.Debug("hidden")
		log.Info("shown")
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring("shown"))
	})

	It("fans out to multiple writers", func() {
		other := &bytes.Buffer{}
		log := NewLoggerWithWriters("info", buf, other)
		log.Info("dual")
		Expect(buf.String()).To(ContainSubstring("dual"))
		Expect(other.String()).To(ContainSubstring("dual"))
	})

	It("is case-insensitive", func() {
		log := NewLoggerWithWriters("DEBUG", buf)
		log.Debug("case")
		Expect(buf.String()).To(ContainSubstring("case"))
	})
})

var _ = Describe("parseLevel", func() {
	It("maps known level names", func() {
		Expect(parseLevel("warn")).To(Equal(zap.WarnLevel))
		Expect(parseLevel("warning")).To(Equal(zap.WarnLevel))
		Expect(parseLevel("error")).To(Equal(zap.ErrorLevel))
		Expect(parseLevel("debug")).To(Equal(zap.DebugLevel))
		Expect(parseLevel("")).To(Equal(zap.InfoLevel))
	})
})

// ensure the console encoder strips ANSI color codes cleanly isn't asserted
// here; ConsoleEncoder output format is exercised via substring checks above.
var _ = Describe("NewLogger", func() {
	It("defaults to stdout without panicking", func() {
		Expect(func() { _ = NewLogger("info") }).NotTo(Panic())
	})
})

var _ = Describe("log line shape", func() {
	It("is not raw JSON (console encoder, not JSON encoder)", func() {
		buf := &bytes.Buffer{}
		log := NewLoggerWithWriters("info", buf)
		log.Info("structured", zap.Int("n", 1))

		var probe map[string]any
		err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &probe)
		Expect(err).To(HaveOccurred())
		Expect(strings.Contains(buf.String(), "structured")).To(BeTrue())
	})
})
