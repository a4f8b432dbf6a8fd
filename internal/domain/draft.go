package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DraftPrompt carries the authoring parameters sent to the draft generator.
type DraftPrompt struct {
	Topic         string `json:"topic"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Difficulty    string `json:"difficulty"`
	Duration      int    `json:"duration"`
	QuestionCount int    `json:"question_count"`
	MaxQuestions  int    `json:"max_questions"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

// Normalized trims strings and applies the generator defaults.
func (p DraftPrompt) Normalized() DraftPrompt {
	p.Topic = strings.TrimSpace(p.Topic)
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Difficulty = strings.TrimSpace(p.Difficulty)
	if p.Difficulty == "" {
		p.Difficulty = "medium"
	}
	if p.Duration <= 0 {
		p.Duration = 10
	}
	if p.QuestionCount <= 0 {
		p.QuestionCount = 5
	}
	if p.MaxQuestions < 0 {
		p.MaxQuestions = 0
	}
	p.StartTime = strings.TrimSpace(p.StartTime)
	p.EndTime = strings.TrimSpace(p.EndTime)
	return p
}

// RawDraft is the generator's structured output before validation.
// Numeric fields are untyped because generators are loose about them.
type RawDraft struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Duration     any                `json:"duration"`
	MaxQuestions any                `json:"max_questions"`
	Questions    []RawDraftQuestion `json:"questions"`
}

type RawDraftQuestion struct {
	Text    string           `json:"text"`
	Type    string           `json:"qtype"`
	Marks   any              `json:"marks"`
	Options []RawDraftOption `json:"options"`
}

type RawDraftOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Draft is a validated quiz draft ready for ingestion.
type Draft struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Duration     int        `json:"duration"`
	MaxQuestions int        `json:"max_questions"`
	Questions    []Question `json:"questions"`
}

// NormalizeDraft applies the ingestion contract: questions without text or,
// for mcq, without usable options are dropped; marks are floored at 1; an mcq
// question with no option flagged correct gets its first option marked correct.
func NormalizeDraft(raw RawDraft, prompt DraftPrompt) (Draft, error) {
	questions := normalizeQuestions(raw.Questions)
	if len(questions) == 0 {
		return Draft{}, fmt.Errorf("%w: generator did not return any usable questions", ErrGenerationFailed)
	}

	draft := Draft{
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Questions:   questions,
	}
	if draft.Title == "" {
		draft.Title = prompt.Title
	}
	if draft.Description == "" {
		draft.Description = prompt.Description
	}
	if d, ok := looseInt(raw.Duration); ok && d > 0 {
		draft.Duration = d
	} else {
		draft.Duration = prompt.Duration
	}

	if m, ok := looseInt(raw.MaxQuestions); ok && m > 0 {
		draft.MaxQuestions = m
	} else if prompt.MaxQuestions > 0 {
		draft.MaxQuestions = prompt.MaxQuestions
	} else {
		draft.MaxQuestions = len(questions)
	}
	return draft, nil
}

func normalizeQuestions(raw []RawDraftQuestion) []Question {
	out := make([]Question, 0, len(raw))
	for i, rq := range raw {
		text := strings.TrimSpace(rq.Text)
		if text == "" {
			continue
		}
		qtype := QuestionType(rq.Type)
		if qtype != QuestionMCQ && qtype != QuestionText {
			qtype = QuestionMCQ
		}
		marks, ok := looseInt(rq.Marks)
		if !ok || marks <= 0 {
			marks = 1
		}
		q := Question{
			Text:  text,
			Type:  qtype,
			Marks: marks,
			// order follows the generator's numbering, dropped entries leave gaps
			Order: i + 1,
		}
		if qtype == QuestionMCQ {
			hasCorrect := false
			for _, ro := range rq.Options {
				optText := strings.TrimSpace(ro.Text)
				if optText == "" {
					continue
				}
				hasCorrect = hasCorrect || ro.IsCorrect
				q.Options = append(q.Options, Option{Text: optText, Correct: ro.IsCorrect})
			}
			if len(q.Options) == 0 {
				continue
			}
			if !hasCorrect {
				q.Options[0].Correct = true
			}
		}
		out = append(out, q)
	}
	return out
}

// looseInt accepts JSON numbers and numeric strings.
func looseInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

// Raw turns an edited draft back into generator output so ingestion applies
// the same normalisation rules to it.
func (d Draft) Raw() RawDraft {
	raw := RawDraft{
		Title:        d.Title,
		Description:  d.Description,
		Duration:     d.Duration,
		MaxQuestions: d.MaxQuestions,
		Questions:    make([]RawDraftQuestion, 0, len(d.Questions)),
	}
	for _, q := range d.Questions {
		rq := RawDraftQuestion{Text: q.Text, Type: string(q.Type), Marks: q.Marks}
		for _, opt := range q.Options {
			rq.Options = append(rq.Options, RawDraftOption{Text: opt.Text, IsCorrect: opt.Correct})
		}
		raw.Questions = append(raw.Questions, rq)
	}
	return raw
}
