// Package prompts builds the model prompts used by the assistant pipeline.
package prompts

import (
	"fmt"
	"strings"

	"github.com/quillio/quill-engine/pkg/schema"
)

// BuildClassificationPrompt asks the model whether the user's message needs
// data from the database at all, or can be answered conversationally.
func BuildClassificationPrompt(message string) string {
	var prompt strings.Builder

	prompt.WriteString("You classify messages sent to a project-management data assistant.\n\n")
	prompt.WriteString("Decide whether the message below requires querying the project database ")
	prompt.WriteString("(questions about tasks, projects, teams, users, counts, dates, status) ")
	prompt.WriteString("or is small talk / a general question that needs no data.\n\n")
	prompt.WriteString(fmt.Sprintf("Message: %q\n\n", message))
	prompt.WriteString("Respond with JSON only:\n")
	prompt.WriteString("{\"needs_data\": true|false}\n")

	return prompt.String()
}

// BuildQueryPrompt creates the query-generation prompt: the rules the
// candidate SQL must follow, the relevant schema excerpt, and the JSON
// contract for the reply.
func BuildQueryPrompt(descriptors []schema.Descriptor, tenantColumn string) string {
	var prompt strings.Builder

	prompt.WriteString("You translate questions about project data into a single PostgreSQL SELECT statement.\n\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("- Exactly one SELECT statement. Never INSERT, UPDATE, DELETE, DDL, or multiple statements.\n")
	prompt.WriteString("- Use only the tables and columns listed below.\n")
	prompt.WriteString("- No subqueries, UNION, CASE, or CTEs. Joins are fine.\n")
	prompt.WriteString(fmt.Sprintf("- Do not filter on %s yourself; access control is applied after you.\n", tenantColumn))
	prompt.WriteString("- Prefer explicit column lists over SELECT *.\n")
	prompt.WriteString("- If the question cannot be answered from these tables, set is_query to false and explain in summary.\n\n")

	prompt.WriteString("## Schema\n\n")
	prompt.WriteString(schema.PromptText(descriptors))
	prompt.WriteString("\n")

	prompt.WriteString("## Examples\n\n")
	prompt.WriteString("Question: how many tasks are still open?\n")
	prompt.WriteString(`{"summary": "count of open tasks", "query": "SELECT COUNT(*) FROM tasks WHERE status = 'open'", "is_query": true}` + "\n\n")
	prompt.WriteString("Question: which tasks are overdue, and in which project?\n")
	prompt.WriteString(`{"summary": "overdue tasks with project names", "query": "SELECT t.title, t.due_date, p.name FROM tasks t JOIN projects p ON t.project_id = p.id WHERE t.due_date < CURRENT_DATE", "is_query": true}` + "\n\n")
	prompt.WriteString("Question: thanks, that's all!\n")
	prompt.WriteString(`{"summary": "no data needed", "query": "", "is_query": false}` + "\n\n")

	prompt.WriteString("Respond with JSON only, using exactly the keys summary, query, is_query.\n")

	return prompt.String()
}

// BuildSynthesisPrompt asks the model to phrase one chunk of query results
// as an answer fragment. Row values are pre-rendered by the caller.
func BuildSynthesisPrompt(question, querySummary string, columns []string, rows []string, chunk, totalChunks int) string {
	var prompt strings.Builder

	prompt.WriteString("You summarize database query results for a project-management assistant.\n\n")
	prompt.WriteString(fmt.Sprintf("The user asked: %q\n", question))
	prompt.WriteString(fmt.Sprintf("The query ran was: %s\n\n", querySummary))

	if totalChunks > 1 {
		prompt.WriteString(fmt.Sprintf("This is part %d of %d of the result set. ", chunk+1, totalChunks))
		prompt.WriteString("Describe only these rows; parts are concatenated later, so do not add an introduction or conclusion.\n\n")
	}

	prompt.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(columns, ", ")))
	prompt.WriteString("Rows:\n")
	for _, row := range rows {
		prompt.WriteString("- " + row + "\n")
	}
	prompt.WriteString("\nAnswer in plain prose. Mention every row; never invent values that are not present.\n")

	return prompt.String()
}

// BuildSuggestionsPrompt asks the model for follow-up questions the user
// could ask next, as a numbered list.
func BuildSuggestionsPrompt(question, answer string, descriptors []schema.Descriptor) string {
	var prompt strings.Builder

	prompt.WriteString("Suggest follow-up questions for a project-management data assistant.\n\n")
	prompt.WriteString(fmt.Sprintf("The user just asked: %q\n", question))
	prompt.WriteString(fmt.Sprintf("The assistant answered: %q\n\n", answer))

	prompt.WriteString("Available data:\n")
	for _, d := range descriptors {
		prompt.WriteString(fmt.Sprintf("- %s: %s\n", d.Table, strings.Join(d.ColumnNames(), ", ")))
	}

	prompt.WriteString("\nPropose exactly 2 short follow-up questions answerable from this data.\n")
	prompt.WriteString("Respond as a numbered list:\n1. ...\n2. ...\n")

	return prompt.String()
}
