package llm

import (
	"fmt"
	"strings"

	"github.com/voicewise/insights/internal/models"
)

func extractionPrompt(transcript, contextText string, customInstructions []string) string {
	var b strings.Builder
	b.WriteString(`TASK: Analyze a gym member feedback call and extract structured insights.

Work through the transcript step by step:
1. Overall sentiment of the member.
2. Main topics discussed.
3. Complaints, concerns or pain points.
4. Requests, improvement ideas or upsell opportunities.
5. Interest in paid services (personal training, nutrition, premium membership, classes).
   If present, copy the single most relevant sentence word for word.
6. Likelihood that the member cancels (churn) and strength of the purchase interest.
`)
	if contextText != "" {
		b.WriteString("\nUse the history below only to calibrate scores; extract from the transcript alone.\n\n")
		b.WriteString(contextText)
	}
	if len(customInstructions) > 0 {
		b.WriteString("\nADDITIONAL QUESTIONS (answer each under custom_instruction_answers, keyed by the question):\n")
		for i, q := range customInstructions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}
	b.WriteString("\nTRANSCRIPT:\n")
	b.WriteString(transcript)
	b.WriteString(`

Return ONLY a JSON object:
{
  "main_topics": [2-5 strings],
  "sentiment": "positive" | "neutral" | "negative",
  "gym_rating": 1-10 or null,
  "pain_points": [strings],
  "opportunities": [strings],
  "revenue_interest": true | false,
  "revenue_interest_quote": "verbatim sentence" or null,
  "churn_score": 0.0-1.0,
  "revenue_interest_score": 0.0-1.0,
  "confidence": 0.0-1.0,
  "custom_instruction_answers": {"question": "answer"}
}
`)
	return b.String()
}

func livePrompt(userText string, prev models.LiveEstimate) string {
	var b strings.Builder
	b.WriteString("TASK: Estimate sentiment, churn risk, revenue interest and confidence from the member's side of a call in progress. Ignore the agent.\n")

	var prior []string
	if prev.Sentiment.Valid() {
		prior = append(prior, "Previous sentiment: "+strings.ToUpper(string(prev.Sentiment)))
	}
	if prev.ChurnScore != nil {
		prior = append(prior, fmt.Sprintf("Previous churn_score: %.1f", *prev.ChurnScore))
	}
	if prev.RevenueScore != nil {
		prior = append(prior, fmt.Sprintf("Previous revenue_interest_score: %.1f", *prev.RevenueScore))
	}
	if len(prior) > 0 {
		b.WriteString("\nPREVIOUS ANALYSIS:\n")
		b.WriteString(strings.Join(prior, "\n"))
		b.WriteString("\nValues may stay, improve or worsen as the conversation goes on; report the current state.\n")
	}

	b.WriteString(`
Scales:
- churn_score 0.0-1.0 (one decimal): 0.0-0.3 satisfied, 0.4-0.6 complaints, 0.7-0.9 cancellation language, 1.0 explicit intent to leave
- revenue_interest_score 0.0-1.0 (one decimal): 0.0 none, up to 1.0 ready to buy
- confidence 0.0-1.0 (two decimals): low for short or unclear speech

MEMBER SPEECH:
`)
	b.WriteString(userText)
	b.WriteString(`

Return ONLY a JSON object:
{"sentiment": "positive" | "neutral" | "negative", "churn_score": 0.0, "revenue_interest_score": 0.0, "confidence": 0.00}
`)
	return b.String()
}

func expansionPrompt(query string) string {
	return fmt.Sprintf(`TASK: Rewrite a search query over gym member feedback calls so that vector search finds every transcript matching its intent.

QUERY: %q

RULES:
1. Keep the intent and every logical connective (and, or, but, if, not). Expand each clause on its own.
2. Add synonyms from the gym domain: gym -> fitness center, workout facility; trainer -> instructor, coach, personal trainer; equipment -> machines, weights, cardio equipment; classes -> sessions, group classes.
3. For complaints add negative variants: bad, terrible, poor, unhappy with, dissatisfied with, frustrated with.
4. For ratings add equivalent forms: "rating above 5" -> rated 6 or more, score higher than 5.
5. Include common misspellings of key terms.
6. Write natural sentences, two to four at most.

Example: "trainers are rude" -> "trainers are rude, instructors are impolite, coaches are disrespectful, trainers are unprofessional, trainers have a bad attitude"

Return ONLY a JSON object: {"expanded_query": "..."}
`, query)
}
