package gemini

import (
	"fmt"
	"strings"

	"timed-quiz-service/internal/domain"
)

// BuildPrompt renders the authoring parameters and the JSON schema the model must answer with.
func BuildPrompt(p domain.DraftPrompt) string {
	p = p.Normalized()

	topic := p.Topic
	if topic == "" {
		topic = "General Knowledge"
	}
	title := p.Title
	if title == "" {
		title = titleCase(topic) + " Challenge"
	}
	description := p.Description
	if description == "" {
		description = "Create an engaging quiz"
	}

	lines := []string{
		"Topic: " + topic,
		"Suggested Title: " + title,
		"Description seed: " + description,
		"Difficulty: " + p.Difficulty,
		fmt.Sprintf("Duration (minutes): %d", p.Duration),
		fmt.Sprintf("Question target: %d", p.QuestionCount),
	}
	if p.MaxQuestions > 0 {
		lines = append(lines, fmt.Sprintf("Max questions per attempt: %d", p.MaxQuestions))
	}
	if p.StartTime != "" {
		lines = append(lines, "Start schedule: "+p.StartTime)
	}
	if p.EndTime != "" {
		lines = append(lines, "End schedule: "+p.EndTime)
	}

	var b strings.Builder
	b.WriteString("You are an assistant tasked with drafting quizzes for an educational app.\n")
	b.WriteString("Based on the following parameters produce engaging, factual questions.\n\nParameters:\n")
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString(`
Respond ONLY with valid JSON following this schema:
{
    "title": "string",
    "description": "string",
    "duration": integer,
    "max_questions": integer,
    "questions": [
        {
            "text": "string",
            "qtype": "mcq" or "text",
            "marks": integer,
            "options": [
                {"text": "string", "is_correct": boolean}
            ]
        }
    ]
}

Rules:
`)
	fmt.Fprintf(&b, "- Provide at least %d questions.\n", p.QuestionCount)
	b.WriteString(`- Use "mcq" when options are provided; only provide "text" when the answer is free-form.
- Ensure exactly one option per question has "is_correct": true (unless qtype is "text").
- Keep questions short and focused on the topic.
- Marks should be 1 unless there is a good reason to vary them.
- Do not include explanations, markdown fences, or trailing commentary.`)
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
