package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTestCase_WorkedExample(t *testing.T) {
	records, err := DecodeTable([]byte(TableHeader+"\nQ1\tA1\t\t\t\t\t\t1\n"), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	set, convo := ToTestCase(records[0])

	assert.Equal(t, UtteranceSet{Name: "Q1", Utterances: []string{"Q1"}}, set)
	assert.Equal(t, "Q1", convo.Header.Name)
	require.Len(t, convo.Conversation, 2)
	assert.Equal(t, ConvoStep{Sender: SenderMe, MessageText: "Q1"}, convo.Conversation[0])
	assert.Equal(t, ConvoStep{
		Sender:      SenderBot,
		MessageText: "A1",
		Asserters:   []Asserter{{Name: "INTENT", Args: []string{"Q1"}}},
	}, convo.Conversation[1])
}

func TestToTestCases_FeedsMergeUnchanged(t *testing.T) {
	records := []*Record{
		{Answer: "A1", Questions: []string{"Q1", "Q1b"}, QnaID: "1"},
		{Answer: "A2", Questions: []string{"Q2"}, QnaID: "2"},
		{Answer: "none", Questions: nil},
	}

	utterances, convos := ToTestCases(records)
	require.Len(t, utterances, 2)
	require.Len(t, convos, 2)

	utterances[0].Utterances[0] = "mutated"
	assert.Equal(t, "Q1", records[0].Questions[0])
	utterances[0].Utterances[0] = "Q1"

	idx := BuildIndex([]*Record{
		{Answer: "A1", Questions: []string{"Q1", "Q1b"}, QnaID: "1"},
		{Answer: "A2", Questions: []string{"Q2"}, QnaID: "2"},
	})
	out, stats := Merge(idx, utterances, convos, ModeReplace, nil)

	assert.Equal(t, 0, stats.Dropped)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, string(EncodeTable(records[:2], nil)), string(EncodeTable(out, nil)))
}
