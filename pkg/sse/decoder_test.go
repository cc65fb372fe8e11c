package sse_test

import (
	"errors"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/sse"
)

var _ = Describe("Decoder", func() {
	var (
		rec *recorder
		d   *sse.Decoder
	)

	BeforeEach(func() {
		rec = &recorder{}
		d = sse.NewDecoder(rec)
	})

	Describe("Write", func() {
		It("dispatches tokens followed by done", func() {
			_, err := d.Write(encodeStream(sse.Token("h"), sse.Token("i"), sse.Done()))
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.events).To(Equal([]sse.Event{sse.Token("h"), sse.Token("i"), sse.Done()}))
			Expect(d.State()).To(Equal(sse.StateClosed))
			Expect(d.Err()).NotTo(HaveOccurred())
			Expect(d.Tokens()).To(Equal(2))
		})

		It("moves from open to receiving on the first chunk", func() {
			Expect(d.State()).To(Equal(sse.StateOpen))

			_, _ = d.Write([]byte("data: {\"tok"))
			Expect(d.State()).To(Equal(sse.StateReceiving))
			Expect(rec.events).To(BeEmpty())
		})

		It("ignores empty chunks", func() {
			_, _ = d.Write(nil)
			Expect(d.State()).To(Equal(sse.StateOpen))
		})

		It("holds a frame split across the delimiter until it completes", func() {
			_, _ = d.Write([]byte("data: {\"token\":\"a\"}\n"))
			Expect(rec.events).To(BeEmpty())

			_, _ = d.Write([]byte("\ndata: {\"token\":\"b\"}\n\n"))
			Expect(rec.events).To(Equal([]sse.Event{sse.Token("a"), sse.Token("b")}))
		})

		It("reassembles multi-byte runes split across chunks", func() {
			stream := encodeStream(sse.Token("héllo 世界"), sse.Done())
			// Split inside the three byte encoding of 世.
			cut := len("data: {\"token\":\"héllo ") + 1

			_, _ = d.Write(stream[:cut])
			_, _ = d.Write(stream[cut:])

			Expect(rec.events).To(Equal([]sse.Event{sse.Token("héllo 世界"), sse.Done()}))
		})

		It("tolerates extra fields and whitespace around the data line", func() {
			_, _ = d.Write([]byte("id: 1\r\n  data:   {\"token\":\"x\"}  \r\n\n"))
			Expect(rec.events).To(Equal([]sse.Event{sse.Token("x")}))
		})

		It("uses only the first data line of a frame", func() {
			_, _ = d.Write([]byte("data: {\"token\":\"first\"}\ndata: {\"token\":\"second\"}\n\n"))
			Expect(rec.events).To(Equal([]sse.Event{sse.Token("first")}))
		})

		It("preserves token text that contains newlines", func() {
			_, _ = d.Write(encodeStream(sse.Token("line one\n\nline two"), sse.Done()))
			Expect(rec.text()).To(Equal("line one\n\nline two"))
		})

		Context("with malformed frames", func() {
			It("drops a frame whose payload is not JSON and keeps going", func() {
				_, _ = d.Write([]byte("data: {not json\n\n"))
				_, _ = d.Write(encodeStream(sse.Token("ok"), sse.Done()))

				Expect(rec.events).To(Equal([]sse.Event{sse.Token("ok"), sse.Done()}))
				Expect(d.Dropped()).To(Equal(1))
			})

			It("drops frames without a data line", func() {
				_, _ = d.Write([]byte(": keep-alive\n\n"))
				Expect(rec.events).To(BeEmpty())
				Expect(d.State()).To(Equal(sse.StateReceiving))
			})

			It("drops payloads that are not JSON objects", func() {
				_, _ = d.Write([]byte("data: 42\n\ndata: null\n\ndata: \"x\"\n\n"))
				Expect(rec.events).To(BeEmpty())
				Expect(d.Dropped()).To(Equal(3))
			})

			It("ignores fields with the wrong type", func() {
				_, _ = d.Write([]byte("data: {\"token\":5,\"error\":false,\"done\":true}\n\n"))
				Expect(rec.events).To(Equal([]sse.Event{sse.Done()}))
			})

			It("ignores done set to false", func() {
				_, _ = d.Write([]byte("data: {\"done\":false}\n\n"))
				Expect(rec.events).To(BeEmpty())
				Expect(d.State()).To(Equal(sse.StateReceiving))
			})
		})

		Context("with terminal frames", func() {
			It("closes on an error frame and reports it", func() {
				_, _ = d.Write(encodeStream(sse.Token("a"), sse.Error("boom")))

				Expect(rec.events).To(Equal([]sse.Event{sse.Token("a"), sse.Error("boom")}))
				var streamErr *sse.StreamError
				Expect(errors.As(d.Err(), &streamErr)).To(BeTrue())
				Expect(streamErr.Message).To(Equal("boom"))
			})

			It("ignores everything after the session closes", func() {
				_, _ = d.Write(encodeStream(sse.Done(), sse.Token("late"), sse.Error("late")))
				n, err := d.Write(encodeStream(sse.Token("later")))
				d.Finish()
				d.Fail(errors.New("transport"))

				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeNumerically(">", 0))
				Expect(rec.events).To(Equal([]sse.Event{sse.Done()}))
			})

			It("gives error priority over done in the same frame", func() {
				_, _ = d.Write([]byte("data: {\"error\":\"bad\",\"done\":true}\n\n"))
				Expect(rec.events).To(Equal([]sse.Event{sse.Error("bad")}))
			})

			It("delivers a token before a terminal signal in the same frame", func() {
				_, _ = d.Write([]byte("data: {\"token\":\"z\",\"done\":true}\n\n"))
				Expect(rec.events).To(Equal([]sse.Event{sse.Token("z"), sse.Done()}))
			})
		})
	})

	Describe("Finish", func() {
		It("treats end of input as completion", func() {
			_, _ = d.Write(encodeStream(sse.Token("a")))
			d.Finish()

			Expect(rec.events).To(Equal([]sse.Event{sse.Token("a"), sse.Done()}))
			Expect(d.Err()).NotTo(HaveOccurred())
		})

		It("completes a session that never received data", func() {
			d.Finish()
			Expect(rec.events).To(Equal([]sse.Event{sse.Done()}))
		})

		It("discards an unterminated trailing frame", func() {
			_, _ = d.Write([]byte("data: {\"token\":\"partial\"}"))
			d.Finish()
			Expect(rec.events).To(Equal([]sse.Event{sse.Done()}))
		})

		It("does not fire done twice after an explicit done", func() {
			_, _ = d.Write(encodeStream(sse.Done()))
			d.Finish()
			Expect(rec.terminals()).To(Equal(1))
		})
	})

	Describe("Fail", func() {
		It("reports the transport failure and never completes", func() {
			cause := errors.New("connection reset")
			_, _ = d.Write(encodeStream(sse.Token("a")))
			d.Fail(cause)
			d.Finish()

			Expect(rec.events).To(Equal([]sse.Event{sse.Token("a"), sse.Error("connection reset")}))
			Expect(d.Err()).To(MatchError(cause))
		})
	})

	Describe("chunk boundaries", func() {
		var (
			stream   []byte
			expected []sse.Event
		)

		BeforeEach(func() {
			stream = append(encodeStream(
				sse.Token("Hel"),
				sse.Token("lo, "),
				sse.Token("wörld"),
				sse.Token(" 👋\n"),
			), []byte("data: {broken\n\n")...)
			stream = append(stream, encodeStream(sse.Token("!"), sse.Done())...)

			expected = decodeChunks(stream)
			Expect(expected).To(HaveLen(6))
		})

		It("decodes identically for every two-way split", func() {
			for i := 0; i <= len(stream); i++ {
				Expect(decodeChunks(stream[:i], stream[i:])).To(Equal(expected), "split at %d", i)
			}
		})

		It("decodes identically when fed one byte at a time", func() {
			chunks := make([][]byte, 0, len(stream))
			for i := range stream {
				chunks = append(chunks, stream[i:i+1])
			}
			Expect(decodeChunks(chunks...)).To(Equal(expected))
		})

		It("decodes identically for random multi-way splits", func() {
			rng := rand.New(rand.NewPCG(7, 42))
			for range 200 {
				var chunks [][]byte
				rest := stream
				for len(rest) > 0 {
					n := 1 + rng.IntN(min(len(rest), 12))
					chunks = append(chunks, rest[:n])
					rest = rest[n:]
				}
				Expect(decodeChunks(chunks...)).To(Equal(expected))
			}
		})
	})
})

var _ = Describe("SinkFuncs", func() {
	It("routes each kind to its callback", func() {
		var tokens []string
		var done, failed int
		var msg string

		sink := sse.SinkFuncs{
			OnToken: func(t string) { tokens = append(tokens, t) },
			OnDone:  func() { done++ },
			OnError: func(m string) { failed++; msg = m },
		}
		sink.Handle(sse.Token("a"))
		sink.Handle(sse.Done())
		sink.Handle(sse.Error("x"))

		Expect(tokens).To(Equal([]string{"a"}))
		Expect(done).To(Equal(1))
		Expect(failed).To(Equal(1))
		Expect(msg).To(Equal("x"))
	})

	It("skips nil callbacks", func() {
		Expect(func() {
			sse.SinkFuncs{}.Handle(sse.Token("a"))
			sse.SinkFuncs{}.Handle(sse.Done())
			sse.SinkFuncs{}.Handle(sse.Error("x"))
		}).NotTo(Panic())
	})
})
