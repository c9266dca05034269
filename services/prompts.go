package services

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

const dietSystemPrompt = `You are a nutrition analyst. Summarize the day's diet into macro trends and
flag issues (sugar spikes, low protein, low fiber, excess sodium). Estimate macros roughly
when portions are vague. Output in {{.language}}, as concise bullet points.`

const exerciseSystemPrompt = `You are a workout analyst. Given today's workout records exported as CSV
(Strava / Google Fit), summarize load, intensity and cardio minutes, and detect over- or
under-training. Output in {{.language}}, as bullet points.`

const recommenderSystemPrompt = `You are a coach. Using the retrieved evidence, suggest tomorrow's diet and a
training plan. End with a "Sources" list naming the domains of the evidence you used.
Output in {{.language}}.`

const plannerSystemPrompt = `You are a health-planner agent. Given the user's diet and exercise summaries and
the evidence notes, produce a compact plan: 1) key observations, 2) diet adjustments,
3) training focus, 4) a one-sentence motivation. Keep to bullet points, in {{.language}}.`

const coachSystemPrompt = `You are a health coach. Merge the diet and exercise insights with the evidence into
one actionable plan that answers the user's question. Flag any contraindications
(e.g. hypertension means limiting sodium). Include up to three evidence-backed tips.
Format as Markdown sections, in {{.language}}.`

const chatSystemPrompt = `You are a bilingual (Korean/English) friendly health coach. Answer in the language
the user writes in. Keep answers concise and practical, and say so when a question needs a
medical professional.`

var (
	dietPrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(dietSystemPrompt, []string{"language"}),
		prompts.NewHumanMessagePromptTemplate("{{.question}}\n\nToday's diet log:\n{{.diet}}\n\nSummarize it.", []string{"question", "diet"}),
	})

	exercisePrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(exerciseSystemPrompt, []string{"language"}),
		prompts.NewHumanMessagePromptTemplate("{{.question}}\n\nWorkout records (CSV):\n{{.exercise}}\n\nSummarize them.", []string{"question", "exercise"}),
	})

	recommenderPrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(recommenderSystemPrompt, []string{"language"}),
		prompts.NewHumanMessagePromptTemplate("Evidence:\n{{.rag}}\n\nConstraints: {{.constraints}}\n\nMake tomorrow's suggestions.", []string{"rag", "constraints"}),
	})

	plannerPrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(plannerSystemPrompt, []string{"language"}),
		prompts.NewHumanMessagePromptTemplate("Diet Summary:\n{{.diet}}\n\nExercise Summary:\n{{.exercise}}\n\nEvidence:\n{{.rag}}\n\nMake the plan.", []string{"diet", "exercise", "rag"}),
	})

	coachPrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(coachSystemPrompt, []string{"language"}),
		prompts.NewHumanMessagePromptTemplate(`User question: {{.question}}

[Diet summary]
{{.diet}}

[Exercise summary]
{{.exercise}}

[Evidence]
{{.rag}}

Combine the above into an actionable guide in Markdown.`, []string{"question", "diet", "exercise", "rag"}),
	})

	chatPrompt = prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(chatSystemPrompt, nil),
	})
)

// renderPrompt formats a chat template into request messages.
func renderPrompt(tmpl prompts.ChatPromptTemplate, values map[string]any) ([]Message, error) {
	formatted, err := tmpl.FormatMessages(values)
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}
	out := make([]Message, 0, len(formatted))
	for _, m := range formatted {
		role := RoleUser
		switch m.GetType() {
		case llms.ChatMessageTypeSystem:
			role = RoleSystem
		case llms.ChatMessageTypeAI:
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: m.GetContent()})
	}
	return out, nil
}
