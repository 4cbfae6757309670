package kb

import (
	"fmt"
	"strconv"

	"cqa-workers/internal/common/logger"
)

// Mode selects how local test data is merged into the remote knowledge base.
type Mode string

const (
	// ModeAppend only adds questions and records.
	ModeAppend Mode = "append"
	// ModeReplace makes remote question lists and membership match the local data.
	ModeReplace Mode = "replace"
)

// ParseMode accepts "append", "replace" or "" (append).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown upload mode %q, expected append or replace", s)
}

// MergeStats summarizes a merge.
type MergeStats struct {
	Kept           int `json:"kept"`
	Updated        int `json:"updated"`
	Dropped        int `json:"dropped"`
	Created        int `json:"created"`
	SkippedConvos  int `json:"skippedConvos"`
	SkippedIntents int `json:"skippedIntents"`
	Answers        int `json:"answers"`
	Questions      int `json:"questions"`
}

type localIntent struct {
	utterances []string
	answer     string
}

// intentTable is an insertion-ordered map from intent name to local data. Re-inserting a
// name replaces its value but keeps its original position.
type intentTable struct {
	order  []string
	byName map[string]*localIntent
}

func newIntentTable() *intentTable {
	return &intentTable{byName: make(map[string]*localIntent)}
}

func (t *intentTable) put(name string, v *localIntent) {
	if _, ok := t.byName[name]; !ok {
		t.order = append(t.order, name)
	}
	t.byName[name] = v
}

func (t *intentTable) get(name string) (*localIntent, bool) {
	v, ok := t.byName[name]
	return v, ok
}

// idAllocator hands out the lowest positive integer id not yet taken.
type idAllocator struct {
	used map[int]bool
	next int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: make(map[int]bool), next: 1}
}

func (a *idAllocator) reserve(id string) {
	if n, err := strconv.Atoi(id); err == nil && n > 0 {
		a.used[n] = true
	}
}

func (a *idAllocator) allocate() string {
	for a.used[a.next] {
		a.next++
	}
	a.used[a.next] = true
	return strconv.Itoa(a.next)
}

// Merge reconciles the local utterance lists and conversations with the remote records in
// idx and returns the record set to upload. Records of idx are updated in place. Existing
// records keep their order; new records follow in the order their intents were first listed.
func Merge(idx *Index, utterances []UtteranceSet, convos []Conversation, mode Mode, log logger.Logger) ([]*Record, MergeStats) {
	log = logger.OrNoOp(log)
	var stats MergeStats

	local := newIntentTable()
	for _, set := range utterances {
		if len(set.Utterances) == 0 {
			continue
		}
		list := make([]string, 0, len(set.Utterances)+1)
		if set.Utterances[0] != set.Name {
			list = append(list, set.Name)
		}
		list = append(list, set.Utterances...)
		local.put(set.Name, &localIntent{utterances: list})
	}

	for _, convo := range convos {
		if !resolveAnswer(local, convo, log) {
			stats.SkippedConvos++
		}
	}

	ids := newIDAllocator()
	var out []*Record
	present := make(map[string]bool)

	for _, rec := range idx.Records {
		ids.reserve(rec.QnaID)

		name := rec.IntentName()
		li, matched := local.get(name)

		if mode == ModeReplace && !matched {
			stats.Dropped++
			continue
		}

		changed := false
		if matched {
			if mode == ModeReplace {
				rec.Questions = append([]string(nil), li.utterances...)
				changed = true
			} else {
				changed = appendMissing(rec, li.utterances)
			}
			if li.answer != "" && li.answer != rec.Answer {
				rec.Answer = li.answer
				changed = true
			}
		}

		if changed {
			stats.Updated++
		} else {
			stats.Kept++
		}
		present[name] = true
		out = append(out, rec)
	}

	for _, name := range local.order {
		if present[name] {
			continue
		}
		li, _ := local.get(name)
		if li.answer == "" {
			log.Warn("Skipping intent without answer", map[string]interface{}{
				"intent": name,
			})
			stats.SkippedIntents++
			continue
		}
		out = append(out, &Record{
			Answer:    li.answer,
			Questions: append([]string(nil), li.utterances...),
			QnaID:     ids.allocate(),
		})
		present[name] = true
		stats.Created++
	}

	total := Count(out)
	stats.Answers = total.Answers
	stats.Questions = total.Questions
	return out, stats
}

// resolveAnswer takes the expected answer from a two-turn conversation and attaches it to
// the local intent the user turn names. It reports whether the conversation was usable.
func resolveAnswer(local *intentTable, convo Conversation, log logger.Logger) bool {
	name := convo.Header.Name
	steps := convo.Conversation

	if len(steps) < 2 {
		log.Warn("Incompatible convo skipped (too few turns)", map[string]interface{}{
			"convo": name,
		})
		return false
	}

	me, bot := steps[0], steps[1]
	li, ok := local.get(me.MessageText)
	if me.Sender != SenderMe || !ok {
		log.Warn("Incompatible convo skipped (incorrect #me section)", map[string]interface{}{
			"convo": name,
		})
		return false
	}
	if bot.Sender != SenderBot || bot.MessageText == "" {
		log.Warn("Incompatible convo skipped (incorrect #bot section)", map[string]interface{}{
			"convo": name,
		})
		return false
	}

	li.answer = bot.MessageText
	return true
}

func appendMissing(rec *Record, utterances []string) bool {
	seen := make(map[string]bool, len(rec.Questions))
	for _, q := range rec.Questions {
		seen[q] = true
	}
	added := false
	for _, u := range utterances {
		if seen[u] {
			continue
		}
		seen[u] = true
		rec.Questions = append(rec.Questions, u)
		added = true
	}
	return added
}
