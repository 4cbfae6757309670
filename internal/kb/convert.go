package kb

// ToTestCase converts a record into an utterance list and a two-turn conversation that asserts
// the record's intent.
func ToTestCase(rec *Record) (UtteranceSet, Conversation) {
	name := rec.IntentName()

	set := UtteranceSet{
		Name:       name,
		Utterances: append([]string(nil), rec.Questions...),
	}

	convo := Conversation{
		Header: ConvoHeader{Name: name},
		Conversation: []ConvoStep{
			{Sender: SenderMe, MessageText: name},
			{
				Sender:      SenderBot,
				MessageText: rec.Answer,
				Asserters: []Asserter{
					{Name: IntentAsserter, Args: []string{name}},
				},
			},
		},
	}

	return set, convo
}

// ToTestCases converts every record with at least one question.
func ToTestCases(records []*Record) ([]UtteranceSet, []Conversation) {
	utterances := make([]UtteranceSet, 0, len(records))
	convos := make([]Conversation, 0, len(records))
	for _, rec := range records {
		if len(rec.Questions) == 0 {
			continue
		}
		set, convo := ToTestCase(rec)
		utterances = append(utterances, set)
		convos = append(convos, convo)
	}
	return utterances, convos
}
