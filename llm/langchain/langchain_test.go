package langchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/gasl-lang/gasl/llm"
)

// fakeModel returns a fixed reply and records the messages it was given.
type fakeModel struct {
	reply    string
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.reply}},
	}, nil
}

func (f *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return f.reply, nil
}

func TestGenerate_SendsSystemAndHumanMessages(t *testing.T) {
	model := &fakeModel{reply: "hello"}
	c := New(model)

	out, err := c.Generate(context.Background(), "be brief", "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
}

func TestGenerate_OmitsEmptySystemMessage(t *testing.T) {
	model := &fakeModel{reply: "hi"}
	c := New(model)

	_, err := c.Generate(context.Background(), "", "say hi")
	require.NoError(t, err)
	require.Len(t, model.messages, 1)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[0].Role)
}

func TestGenerateStructured_DecodesAndReportsMismatch(t *testing.T) {
	c := New(&fakeModel{reply: `{"n": 3}`})

	var out struct {
		N int `json:"n"`
	}
	require.NoError(t, c.GenerateStructured(context.Background(), "", "count", &out))
	assert.Equal(t, 3, out.N)

	c = New(&fakeModel{reply: "no json here"})
	err := c.GenerateStructured(context.Background(), "", "count", &out)
	var mismatch *llm.SchemaMismatchError
	assert.ErrorAs(t, err, &mismatch)
}
