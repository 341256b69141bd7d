package ai

import (
	"strings"
)

const ImageDescribePrompt = "Describe this image in detail."

const VideoSummaryPrompt = `Help me summarize important details from this lecture video in detail and also provide examples.
Mention the timestamps (mm:ss or h:mm:ss) where each topic starts.`

const VideoQuizPrompt = "Summarize this video. Then create a quiz with an answer key based on the information in this video."

const qaSystemTemplate = `You are an academic assistant helping {user_display_name} understand their study material.
Answer the question using only the context below. If the context does not contain the answer, say so instead of guessing.
Explain step by step where it helps, and keep the answer focused on the question.

Context:
{context}`

const qaUserTemplate = `{question}`

type QAPromptVars struct {
	Context         string
	Question        string
	UserDisplayName string
}

// RenderQAPrompt fills the fixed question answering template and returns the
// system prompt and the user message.
func RenderQAPrompt(vars QAPromptVars) (string, string) {
	name := strings.TrimSpace(vars.UserDisplayName)
	if name == "" {
		name = "a student"
	}
	r := strings.NewReplacer(
		"{user_display_name}", name,
		"{context}", vars.Context,
		"{question}", vars.Question,
	)
	return r.Replace(qaSystemTemplate), r.Replace(qaUserTemplate)
}
