// Package kb holds the knowledge-base records exchanged with the question-answering service
// and the test-case shapes they convert to. It decodes and encodes the service's tabular
// archive, indexes records by answer and intent name, and merges local test data into a
// remote record set.
package kb

// Record is one answer and its trigger questions. Questions[0] is the intent name.
// The remaining fields are passed through verbatim.
type Record struct {
	Answer             string   `json:"answer"`
	Questions          []string `json:"questions"`
	Source             string   `json:"source,omitempty"`
	Metadata           string   `json:"metadata,omitempty"`
	SuggestedQuestions string   `json:"suggestedQuestions,omitempty"`
	IsContextOnly      string   `json:"isContextOnly,omitempty"`
	Prompts            string   `json:"prompts,omitempty"`
	QnaID              string   `json:"qnaId,omitempty"`
}

// IntentName returns the first question, or "" for a record without questions.
func (r *Record) IntentName() string {
	if len(r.Questions) == 0 {
		return ""
	}
	return r.Questions[0]
}

// UtteranceSet is a named list of user utterances.
type UtteranceSet struct {
	Name       string   `json:"name" yaml:"name"`
	Utterances []string `json:"utterances" yaml:"utterances"`
}

const (
	SenderMe  = "me"
	SenderBot = "bot"

	// IntentAsserter is the matcher kind attached to the bot turn of a converted conversation.
	IntentAsserter = "INTENT"
)

// Conversation is a scripted test dialog. Converted records always have two turns:
// the user sends the intent name and the bot answers with an intent assertion.
type Conversation struct {
	Header       ConvoHeader `json:"header" yaml:"header"`
	Conversation []ConvoStep `json:"conversation" yaml:"conversation"`
}

type ConvoHeader struct {
	Name string `json:"name" yaml:"name"`
}

type ConvoStep struct {
	Sender      string     `json:"sender" yaml:"sender"`
	MessageText string     `json:"messageText" yaml:"messageText"`
	Asserters   []Asserter `json:"asserters,omitempty" yaml:"asserters,omitempty"`
}

type Asserter struct {
	Name string   `json:"name" yaml:"name"`
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Stats counts answers and questions in a record set.
type Stats struct {
	Answers   int `json:"answers"`
	Questions int `json:"questions"`
}

// Count returns the answer and question totals of records.
func Count(records []*Record) Stats {
	s := Stats{Answers: len(records)}
	for _, r := range records {
		s.Questions += len(r.Questions)
	}
	return s
}
