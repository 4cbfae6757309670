package cqa

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"cqa-workers/internal/common/errors"
)

// QueryContext links a question to the previous turn so follow-up prompts resolve.
type QueryContext struct {
	PreviousQnaID     int    `json:"previousQnaId"`
	PreviousUserQuery string `json:"previousUserQuery"`
}

// Session carries the per-conversation state between queries.
type Session struct {
	UserID  string        `json:"userId"`
	Context *QueryContext `json:"context,omitempty"`
}

// QueryRequest is the body of a knowledge base query. The endpoint key travels in a header.
type QueryRequest struct {
	Question                   string            `json:"question"`
	UserID                     string            `json:"userId"`
	IncludeUnstructuredSources bool              `json:"includeUnstructuredSources"`
	AnswerSpanRequest          answerSpanRequest `json:"answerSpanRequest"`
	Context                    *QueryContext     `json:"context"`
	RankerType                 string            `json:"rankerType"`
}

type answerSpanRequest struct {
	Enable bool `json:"enable"`
}

type QueryResponse struct {
	Answers []Answer `json:"answers"`
}

type Answer struct {
	Questions       []string `json:"questions"`
	Answer          string   `json:"answer"`
	ConfidenceScore float64  `json:"confidenceScore"`
	ID              int      `json:"id"`
	Source          string   `json:"source"`
	Dialog          *Dialog  `json:"dialog,omitempty"`
}

type Dialog struct {
	IsContextOnly bool     `json:"isContextOnly"`
	Prompts       []Prompt `json:"prompts"`
}

type Prompt struct {
	DisplayOrder int    `json:"displayOrder"`
	QnaID        int    `json:"qnaId"`
	DisplayText  string `json:"displayText"`
}

// BotMessage is the normalized reply handed to the test framework.
type BotMessage struct {
	Sender      string   `json:"sender"`
	MessageText string   `json:"messageText,omitempty"`
	NLP         *NLP     `json:"nlp,omitempty"`
	Buttons     []Button `json:"buttons,omitempty"`
	// SourceData is set on answered queries.
	SourceData *SourceData `json:"sourceData,omitempty"`
}

// SourceData keeps the exchange a reply was built from.
type SourceData struct {
	Request  QueryRequest    `json:"request"`
	Response json.RawMessage `json:"response"`
}

type NLP struct {
	Intent Intent `json:"intent"`
}

type Intent struct {
	Name            string   `json:"name"`
	Confidence      float64  `json:"confidence"`
	Incomprehension bool     `json:"incomprehension,omitempty"`
	Intents         []Intent `json:"intents,omitempty"`
}

type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

const (
	noneIntent         = "None"
	unknownIntentLabel = "N/A"
)

// Query asks one question within session and updates the session context. A nil session
// starts a fresh conversation.
func (c *Client) Query(ctx context.Context, session *Session, question string) (*BotMessage, error) {
	if session == nil {
		session = &Session{}
	}
	if session.UserID == "" {
		session.UserID = c.caps.UserID
	}

	req := QueryRequest{
		Question:                   question,
		UserID:                     session.UserID,
		IncludeUnstructuredSources: c.caps.includeUnstructured(),
		AnswerSpanRequest:          answerSpanRequest{Enable: c.caps.answerSpan()},
		Context:                    session.Context,
		RankerType:                 c.caps.RankerType,
	}

	var resp QueryResponse
	raw, err := c.http.SendJSON(ctx, http.MethodPost, c.queryURL(), req, &resp)
	if err != nil {
		return nil, errors.NewQueryFailedError(errors.NewTransportError(errors.PhaseQuery, err))
	}

	msg := ToBotMessage(resp)
	if len(resp.Answers) > 0 {
		msg.SourceData = &SourceData{Request: req, Response: json.RawMessage(raw.Body)}
		session.Context = &QueryContext{
			PreviousQnaID:     resp.Answers[0].ID,
			PreviousUserQuery: question,
		}
	} else {
		session.Context = nil
	}

	c.logger.Debug("Query answered", map[string]interface{}{
		"intent":     msg.NLP.Intent.Name,
		"confidence": msg.NLP.Intent.Confidence,
		"answers":    len(resp.Answers),
	})
	return msg, nil
}

// ToBotMessage maps the best answer to a bot message and lists the other answers as
// alternate intents. No answer yields an incomprehension intent.
func ToBotMessage(resp QueryResponse) *BotMessage {
	if len(resp.Answers) == 0 {
		return &BotMessage{
			Sender: "bot",
			NLP: &NLP{Intent: Intent{
				Name:            noneIntent,
				Confidence:      1,
				Incomprehension: true,
			}},
		}
	}

	intents := make([]Intent, len(resp.Answers))
	for i, a := range resp.Answers {
		name := unknownIntentLabel
		if len(a.Questions) > 0 {
			name = a.Questions[0]
		}
		intents[i] = Intent{Name: name, Confidence: a.ConfidenceScore}
	}

	best := resp.Answers[0]
	top := intents[0]
	if len(intents) > 1 {
		top.Intents = intents[1:]
	}

	msg := &BotMessage{
		Sender:      "bot",
		MessageText: best.Answer,
		NLP:         &NLP{Intent: top},
	}
	if best.Dialog != nil {
		for _, p := range best.Dialog.Prompts {
			msg.Buttons = append(msg.Buttons, Button{Text: p.DisplayText, Payload: strconv.Itoa(p.QnaID)})
		}
	}
	return msg
}
