package llm

import (
	"fmt"
	"strings"

	"workspace-rag/internal/rag"
)

const contextSeparator = "\n\n---\n\n"

const promptTemplate = `You are a helpful assistant that answers questions about the user's workspace documents.

Answer the question using ONLY the context below. If the context does not contain enough information to answer, say "I don't know based on the provided documents." Do not make up information.

When you use information from a document, cite it by its source name. Use Markdown for lists and code blocks.

Context:
%s

Question: %s

Answer:`

// BuildContext renders chunks as "Source/Content" blocks in rank order.
// Similarity scores are not included.
func BuildContext(chunks []rag.ScoredChunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("Source: %s\nContent: %s", c.DocumentName, c.Content)
	}
	return strings.Join(blocks, contextSeparator)
}

// BuildPrompt assembles the grounded prompt for question.
func BuildPrompt(question string, chunks []rag.ScoredChunk) string {
	return fmt.Sprintf(promptTemplate, BuildContext(chunks), strings.TrimSpace(question))
}
