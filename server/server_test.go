package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/producer/echo"
	"github.com/papercomputeco/chatstream/pkg/producer/scripted"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

func chatRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

var _ = Describe("Server", func() {
	Describe("NewServer", func() {
		It("requires a producer", func() {
			_, err := NewServer(Config{}, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GET /", func() {
		It("returns the service banner", func() {
			s := newTestServer(echo.New(), Config{})

			resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var banner BannerResponse
			Expect(json.NewDecoder(resp.Body).Decode(&banner)).To(Succeed())
			Expect(banner.Message).To(Equal("chatstream server"))
			Expect(banner.Version).NotTo(BeEmpty())
			_, err = time.Parse(time.RFC3339Nano, banner.Timestamp)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("GET /api/health", func() {
		It("reports healthy", func() {
			s := newTestServer(echo.New(), Config{})

			resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var health HealthResponse
			Expect(json.NewDecoder(resp.Body).Decode(&health)).To(Succeed())
			Expect(health.Status).To(Equal("healthy"))
			Expect(health.Timestamp).NotTo(BeEmpty())
		})
	})

	Describe("CORS", func() {
		It("allows the configured origin", func() {
			s := newTestServer(echo.New(), Config{CORSOrigin: "http://localhost:3000"})

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			resp, err := s.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
		})

		It("does not allow other origins", func() {
			s := newTestServer(echo.New(), Config{CORSOrigin: "http://localhost:3000"})

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			req.Header.Set("Origin", "http://evil.example")
			resp, err := s.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})

	Describe("POST /api/chat", func() {
		It("streams one frame per token followed by done", func() {
			s := newTestServer(echo.New(), Config{})

			resp, err := s.app.Test(chatRequest(`{"messages":[{"role":"user","content":"hi"}]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(
				"data: {\"token\":\"h\"}\n\n" +
					"data: {\"token\":\"i\"}\n\n" +
					"data: {\"done\":true}\n\n",
			))
		})

		It("sets the event stream headers", func() {
			s := newTestServer(echo.New(), Config{})

			resp, err := s.app.Test(chatRequest(`{"messages":[]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
			Expect(resp.Header.Get("X-Accel-Buffering")).To(Equal("no"))

			_, err = uuid.Parse(resp.Header.Get(StreamIDHeader))
			Expect(err).NotTo(HaveOccurred())
		})

		It("assigns a distinct stream id to each response", func() {
			s := newTestServer(echo.New(), Config{})

			first, err := s.app.Test(chatRequest(`{"messages":[]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			second, err := s.app.Test(chatRequest(`{"messages":[]}`), -1)
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Header.Get(StreamIDHeader)).NotTo(Equal(second.Header.Get(StreamIDHeader)))
		})

		It("answers an empty conversation with done alone", func() {
			s := newTestServer(echo.New(), Config{})

			resp, err := s.app.Test(chatRequest(`{"messages":[]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(decodeBody(resp.Body)).To(Equal([]sse.Event{sse.Done()}))
		})

		It("drops the trailing placeholder before producing", func() {
			prod := &recordingProducer{}
			s := newTestServer(prod, Config{})

			resp, err := s.app.Test(chatRequest(`{"messages":[
				{"role":"user","content":"hello"},
				{"role":"assistant","content":""}
			]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			_, _ = io.ReadAll(resp.Body)

			Expect(prod.seen()).To(Equal([]llm.Message{llm.NewTextMessage(llm.RoleUser, "hello")}))
		})

		It("ends with an error frame and no done when the producer fails", func() {
			prod := scripted.New([]string{"a", "b"}, scripted.WithFailure(1, errors.New("model crashed")))
			s := newTestServer(prod, Config{})

			resp, err := s.app.Test(chatRequest(`{"messages":[{"role":"user","content":"q"}]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(
				"data: {\"token\":\"a\"}\n\n" +
					"data: {\"error\":\"model crashed\"}\n\n",
			))
		})

		It("reports a producer that cannot start as an error frame", func() {
			s := newTestServer(&failingProducer{err: errors.New("upstream unavailable")}, Config{})

			resp, err := s.app.Test(chatRequest(`{"messages":[{"role":"user","content":"q"}]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(decodeBody(resp.Body)).To(Equal([]sse.Event{sse.Error("upstream unavailable")}))
		})

		It("paces tokens by the configured delay", func() {
			s := newTestServer(scripted.New([]string{"a", "b", "c"}), Config{Delay: 20 * time.Millisecond})

			start := time.Now()
			resp, err := s.app.Test(chatRequest(`{"messages":[]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(decodeBody(resp.Body)).To(HaveLen(4))
			Expect(time.Since(start)).To(BeNumerically(">=", 40*time.Millisecond))
		})

		DescribeTable("rejects requests without a messages array",
			func(body string) {
				s := newTestServer(echo.New(), Config{})

				resp, err := s.app.Test(chatRequest(body), -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
				Expect(resp.Header.Get(StreamIDHeader)).To(BeEmpty())

				raw, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(raw)).NotTo(ContainSubstring("data:"))

				var errResp llm.ErrorResponse
				Expect(json.Unmarshal(raw, &errResp)).To(Succeed())
				Expect(errResp.Error).To(Equal("messages must be an array"))
			},
			Entry("empty object", `{}`),
			Entry("null messages", `{"messages":null}`),
			Entry("string messages", `{"messages":"hi"}`),
			Entry("object messages", `{"messages":{"role":"user"}}`),
			Entry("malformed JSON", `{"messages":[`),
			Entry("empty body", ``),
		)

	})

	Describe("cancellation", func() {
		It("stops the emission loop when the client goes away", func() {
			prod := &endlessProducer{}
			s := newTestServer(prod, Config{})

			pr, pw := io.Pipe()
			Expect(pr.Close()).To(Succeed())

			s.streams.Add(1)
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.emit("test", nil, pw)
			}()

			Eventually(done).Should(BeClosed())
			Expect(prod.nexts.Load()).To(BeEquivalentTo(1))
			Expect(prod.closed.Load()).To(BeTrue())
		})

		It("ends in-flight streams with an error frame on shutdown", func() {
			s := newTestServer(&endlessProducer{}, Config{})
			s.cancel()

			resp, err := s.app.Test(chatRequest(`{"messages":[]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(decodeBody(resp.Body)).To(Equal([]sse.Event{sse.Error("server shutting down")}))
		})

		It("interrupts the inter-token delay on shutdown", func() {
			s := newTestServer(&endlessProducer{}, Config{Delay: time.Hour})

			pr, pw := io.Pipe()
			s.streams.Add(1)
			go s.emit("test", nil, pw)

			events := make(chan []sse.Event, 1)
			go func() { events <- decodeBody(pr) }()

			// Let the first token through, then shut down while sleeping.
			time.Sleep(20 * time.Millisecond)
			s.cancel()

			Eventually(events).Should(Receive(Equal([]sse.Event{
				sse.Token("x"),
				sse.Error("server shutting down"),
			})))
			s.streams.Wait()
		})
	})

	Describe("over a real connection", func() {
		// post starts s on a local listener and sends body to /api/chat.
		post := func(s *Server, body string) *http.Response {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() { _ = s.RunWithListener(ln) }()
			DeferCleanup(s.Shutdown)

			req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
				"http://"+ln.Addr().String()+"/api/chat",
				strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("rejects bodies over the limit", func() {
			s := newTestServer(echo.New(), Config{BodyLimit: 64})

			big := `{"messages":[{"role":"user","content":"` + strings.Repeat("x", 128) + `"}]}`
			resp := post(s, big)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(resp.Header.Get(fiber.HeaderContentType)).NotTo(HavePrefix("text/event-stream"))
		})

		It("delivers each frame as soon as it is written", func() {
			prod := &gateProducer{release: make(chan struct{})}
			s := newTestServer(prod, Config{})

			resp := post(s, `{"messages":[{"role":"user","content":"q"}]}`)
			defer resp.Body.Close()

			// The producer is blocked after its first token, so reading the
			// first frame proves it was flushed on its own.
			reader := bufio.NewReader(resp.Body)
			line, err := reader.ReadString('\n')
			Expect(err).NotTo(HaveOccurred())
			Expect(line).To(Equal("data: {\"token\":\"first\"}\n"))

			close(prod.release)

			rest, err := io.ReadAll(reader)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(rest)).To(Equal("\ndata: {\"token\":\"second\"}\n\ndata: {\"done\":true}\n\n"))
		})
	})
})
