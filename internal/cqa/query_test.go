package cqa

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_MapsAnswersAndKeepsContext(t *testing.T) {
	f := newFakeService(t)
	f.queryResponse = QueryResponse{Answers: []Answer{
		{
			Questions:       []string{"opening hours", "when are you open"},
			Answer:          "9 to 5",
			ConfidenceScore: 0.92,
			ID:              12,
			Dialog: &Dialog{Prompts: []Prompt{
				{DisplayOrder: 0, QnaID: 13, DisplayText: "Weekends?"},
			}},
		},
		{Questions: nil, Answer: "other", ConfidenceScore: 0.1, ID: 7},
	}}

	c := f.client(t)
	session := &Session{}
	msg, err := c.Query(context.Background(), session, "when do you open")
	require.NoError(t, err)

	assert.Equal(t, "bot", msg.Sender)
	assert.Equal(t, "9 to 5", msg.MessageText)
	require.NotNil(t, msg.NLP)
	assert.Equal(t, "opening hours", msg.NLP.Intent.Name)
	assert.Equal(t, 0.92, msg.NLP.Intent.Confidence)
	assert.Equal(t, []Intent{{Name: "N/A", Confidence: 0.1}}, msg.NLP.Intent.Intents)
	assert.Equal(t, []Button{{Text: "Weekends?", Payload: "13"}}, msg.Buttons)

	require.NotNil(t, msg.SourceData)
	assert.Equal(t, "when do you open", msg.SourceData.Request.Question)
	var echoed QueryResponse
	require.NoError(t, json.Unmarshal(msg.SourceData.Response, &echoed))
	assert.Equal(t, f.queryResponse, echoed)

	require.NotNil(t, session.Context)
	assert.Equal(t, 12, session.Context.PreviousQnaID)
	assert.Equal(t, "when do you open", session.Context.PreviousUserQuery)
	assert.NotEmpty(t, session.UserID)

	_, err = c.Query(context.Background(), session, "and weekends?")
	require.NoError(t, err)

	require.Len(t, f.queries, 2)
	first, second := f.queries[0], f.queries[1]
	assert.Nil(t, first.Context)
	assert.True(t, first.IncludeUnstructuredSources)
	assert.False(t, first.AnswerSpanRequest.Enable)
	assert.Equal(t, "Default", first.RankerType)
	require.NotNil(t, second.Context)
	assert.Equal(t, 12, second.Context.PreviousQnaID)
	assert.Equal(t, first.UserID, second.UserID)
}

func TestQuery_EmptyAnswerResetsContext(t *testing.T) {
	f := newFakeService(t)
	c := f.client(t)
	session := &Session{UserID: "tester", Context: &QueryContext{PreviousQnaID: 3, PreviousUserQuery: "q"}}

	msg, err := c.Query(context.Background(), session, "gibberish")
	require.NoError(t, err)

	assert.Nil(t, session.Context)
	assert.Equal(t, "", msg.MessageText)
	assert.Equal(t, Intent{Name: "None", Confidence: 1, Incomprehension: true}, msg.NLP.Intent)
	assert.Equal(t, "tester", f.queries[0].UserID)
	assert.Nil(t, msg.SourceData)
}
