package kb

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
)

const (
	// TableFileName is the name of the table inside the archive.
	TableFileName = "QnAs.tsv"

	// TableHeader is the first line of every table.
	TableHeader = "Question\tAnswer\tSource\tMetadata\tSuggestedQuestions\tIsContextOnly\tPrompts\tQnaId"

	rowFields    = 8
	maxLineBytes = 16 * 1024 * 1024
)

// Row is one line of the table.
type Row struct {
	Question           string
	Answer             string
	Source             string
	Metadata           string
	SuggestedQuestions string
	IsContextOnly      string
	Prompts            string
	QnaID              string
}

// ParseRow splits a line into its eight fields. Missing trailing fields are left empty and
// tabs beyond the eighth field stay in QnaID.
func ParseRow(line string) Row {
	f := strings.SplitN(strings.TrimSuffix(line, "\r"), "\t", rowFields)
	for len(f) < rowFields {
		f = append(f, "")
	}
	return Row{
		Question:           f[0],
		Answer:             f[1],
		Source:             f[2],
		Metadata:           f[3],
		SuggestedQuestions: f[4],
		IsContextOnly:      f[5],
		Prompts:            f[6],
		QnaID:              f[7],
	}
}

func rowFor(r *Record, question string) Row {
	return Row{
		Question:           question,
		Answer:             r.Answer,
		Source:             r.Source,
		Metadata:           r.Metadata,
		SuggestedQuestions: r.SuggestedQuestions,
		IsContextOnly:      r.IsContextOnly,
		Prompts:            r.Prompts,
		QnaID:              r.QnaID,
	}
}

// line renders the row without a trailing newline. The table has no quoting, so tabs
// become spaces and line breaks become a literal \n.
func (r Row) line() string {
	return strings.Join([]string{
		flatten(r.Question),
		flatten(r.Answer),
		flatten(r.Source),
		flatten(r.Metadata),
		flatten(r.SuggestedQuestions),
		flatten(r.IsContextOnly),
		flatten(r.Prompts),
		flatten(r.QnaID),
	}, "\t")
}

var fieldFlattener = strings.NewReplacer("\t", " ", "\r\n", `\n`, "\n", `\n`, "\r", `\n`)

func flatten(s string) string {
	return fieldFlattener.Replace(s)
}

// RowScanner reads data rows from a table one at a time, skipping the header and blank lines.
type RowScanner struct {
	sc         *bufio.Scanner
	headerSeen bool
	row        Row
	line       int
}

func NewRowScanner(r io.Reader) *RowScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &RowScanner{sc: sc}
}

// Scan advances to the next data row.
func (s *RowScanner) Scan() bool {
	for s.sc.Scan() {
		s.line++
		text := s.sc.Text()
		if !s.headerSeen {
			s.headerSeen = true
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		s.row = ParseRow(text)
		return true
	}
	return false
}

func (s *RowScanner) Row() Row { return s.row }

// Line is the 1-based line number of the current row.
func (s *RowScanner) Line() int { return s.line }

func (s *RowScanner) Err() error { return s.sc.Err() }

// DecodeTable groups table rows by answer. The first row of an answer creates the record and
// names its intent; every row of that answer adds its question. Record order is the order in
// which answers first appear.
func DecodeTable(data []byte, log logger.Logger) ([]*Record, error) {
	log = logger.OrNoOp(log)

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewFormatError(TableFileName + " is empty")
	}

	var records []*Record
	byAnswer := make(map[string]*Record)

	sc := NewRowScanner(bytes.NewReader(data))
	for sc.Scan() {
		row := sc.Row()
		if row.Question == "" || row.Answer == "" {
			log.Warn("Skipping table row without question or answer", map[string]interface{}{
				"line": sc.Line(),
			})
			continue
		}

		if rec, ok := byAnswer[row.Answer]; ok {
			rec.Questions = append(rec.Questions, row.Question)
			continue
		}

		rec := &Record{
			Answer:             row.Answer,
			Questions:          []string{row.Question},
			Source:             row.Source,
			Metadata:           row.Metadata,
			SuggestedQuestions: row.SuggestedQuestions,
			IsContextOnly:      row.IsContextOnly,
			Prompts:            row.Prompts,
			QnaID:              row.QnaID,
		}
		byAnswer[row.Answer] = rec
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewFormatError(err.Error())
	}

	return records, nil
}

// EncodeTable writes the header and one line per question of every record. Records without
// an answer or questions are skipped.
func EncodeTable(records []*Record, log logger.Logger) []byte {
	log = logger.OrNoOp(log)

	var buf bytes.Buffer
	buf.WriteString(TableHeader)
	buf.WriteByte('\n')

	for _, rec := range records {
		if rec == nil || rec.Answer == "" || len(rec.Questions) == 0 {
			fields := map[string]interface{}{}
			if rec != nil {
				fields["qnaId"] = rec.QnaID
				fields["intent"] = rec.IntentName()
			}
			log.Warn("Skipping record without answer or questions", fields)
			continue
		}
		for _, q := range rec.Questions {
			buf.WriteString(rowFor(rec, q).line())
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes()
}
