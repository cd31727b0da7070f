package route

import (
	"strings"

	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
)

const analystRole = "You are an internal audit analyst. Use only the findings listed below. " +
	"Cite findings by their ID in square brackets, for example [F-102]. " +
	"If the findings do not support an answer, say so plainly."

const complexTask = "Answer the question with a structured analysis. " +
	"Where the question asks for recommendations, give them in priority order."

const hybridTask = "The user has already been shown these findings as a list. " +
	"In at most five sentences, explain what they have in common and what stands out."

// buildPrompt assembles the model prompt for a model-backed kind.
func buildPrompt(kind intent.Kind, question, contextText string) string {
	task := complexTask
	if kind == intent.KindHybrid {
		task = hybridTask
	}

	var b strings.Builder
	b.Grow(len(analystRole) + len(task) + len(contextText) + len(question) + 32)
	b.WriteString(analystRole)
	b.WriteString("\n")
	b.WriteString(task)
	b.WriteString("\n\nFindings:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
