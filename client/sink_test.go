package client_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/client"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

var _ = Describe("ConversationSink", func() {
	var conv llm.Conversation

	BeforeEach(func() {
		conv = llm.Conversation{llm.NewTextMessage(llm.RoleUser, "hi")}.WithPlaceholder()
	})

	It("appends tokens to the placeholder", func() {
		sink := client.NewConversationSink(conv)
		sink.Handle(sse.Token("h"))
		sink.Handle(sse.Token("i"))
		sink.Handle(sse.Done())

		Expect(sink.Conversation()).To(Equal(llm.Conversation{
			llm.NewTextMessage(llm.RoleUser, "hi"),
			llm.NewTextMessage(llm.RoleAssistant, "hi"),
		}))
		Expect(sink.Finished()).To(BeTrue())
		Expect(sink.Failure()).To(BeEmpty())
	})

	It("records a failure as an assistant message", func() {
		sink := client.NewConversationSink(conv)
		sink.Handle(sse.Token("a"))
		sink.Handle(sse.Error("boom"))

		got := sink.Conversation()
		Expect(got).To(HaveLen(3))
		Expect(got[1]).To(Equal(llm.NewTextMessage(llm.RoleAssistant, "a")))
		Expect(got[2]).To(Equal(llm.NewTextMessage(llm.RoleAssistant, "[Error] boom")))
		Expect(sink.Failure()).To(Equal("boom"))
	})

	It("leaves nothing empty to resubmit after an early failure", func() {
		sink := client.NewConversationSink(conv)
		sink.Handle(sse.Error("boom"))

		next := append(sink.Conversation(), llm.NewTextMessage(llm.RoleUser, "retry"))
		Expect(next.Payload()).To(Equal([]llm.Message{
			llm.NewTextMessage(llm.RoleUser, "hi"),
			llm.NewTextMessage(llm.RoleAssistant, "[Error] boom"),
			llm.NewTextMessage(llm.RoleUser, "retry"),
		}))
	})

	It("synthesizes an assistant message without a placeholder", func() {
		sink := client.NewConversationSink(llm.Conversation{llm.NewTextMessage(llm.RoleUser, "q")})
		sink.Handle(sse.Token("x"))

		last, ok := sink.Conversation().Last()
		Expect(ok).To(BeTrue())
		Expect(last).To(Equal(llm.NewTextMessage(llm.RoleAssistant, "x")))
	})

	It("forwards every event", func() {
		var forwarded []sse.Event
		sink := client.NewConversationSink(conv)
		sink.Forward = sse.SinkFunc(func(e sse.Event) { forwarded = append(forwarded, e) })

		sink.Handle(sse.Token("a"))
		sink.Handle(sse.Done())

		Expect(forwarded).To(Equal([]sse.Event{sse.Token("a"), sse.Done()}))
	})
})
