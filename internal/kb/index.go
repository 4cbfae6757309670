package kb

// Index cross-references a record set by answer and by intent name.
type Index struct {
	// Records in first-seen order.
	Records      []*Record
	ByAnswer     map[string]*Record
	ByIntentName map[string]*Record
}

// BuildIndex indexes records. A record whose answer was already seen is folded into the
// earlier one by appending its questions, so the result holds one record per answer.
// Records without questions are not indexed.
func BuildIndex(records []*Record) *Index {
	idx := &Index{
		ByAnswer:     make(map[string]*Record, len(records)),
		ByIntentName: make(map[string]*Record, len(records)),
	}

	for _, rec := range records {
		if rec == nil || len(rec.Questions) == 0 {
			continue
		}
		if existing, ok := idx.ByAnswer[rec.Answer]; ok {
			existing.Questions = append(existing.Questions, rec.Questions...)
			continue
		}
		idx.ByAnswer[rec.Answer] = rec
		idx.Records = append(idx.Records, rec)
	}

	for _, rec := range idx.Records {
		name := rec.IntentName()
		if _, ok := idx.ByIntentName[name]; !ok {
			idx.ByIntentName[name] = rec
		}
	}

	return idx
}

// Stats counts the indexed answers and questions.
func (idx *Index) Stats() Stats {
	return Count(idx.Records)
}
