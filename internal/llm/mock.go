package llm

import (
	"context"
	"time"
)

const (
	mockWords        = "curious, habitat, migrate, observe, predator, survive, adapt, climate, shelter, species"
	mockConversation = `{"conversation": [
{"speaker": "Student1", "text": "Did you observe how the birds migrate when the climate changes?"},
{"speaker": "Student2", "text": "Yes! They leave their habitat to survive the winter."},
{"speaker": "Student1", "text": "A predator might follow them, right?"},
{"speaker": "Student2", "text": "Some species adapt and build a shelter instead."}
]}`
)

type mockGenerator struct{}

// NewMockGenerator returns a backend producing canned lesson content.
func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	content := mockWords
	if req.Format == FormatJSON {
		content = mockConversation
	}
	return consumer(Chunk{
		Content: content,
		Latency: 20 * time.Millisecond,
	})
}
