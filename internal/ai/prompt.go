package ai

import (
	"fmt"
	"time"
)

func taskPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following message and extract actionable tasks.

Respond with JSON only, no prose, using exactly this shape:
{
  "tasks": [{"title": "...", "due": "2024-01-31T15:00:00Z or null", "priority": "urgent|high|normal|low"}],
  "context": "one short sentence summarizing the message",
  "priority": "urgent|high|normal|low"
}

Rules:
- Only include concrete, actionable items as tasks.
- Omit the due field when no deadline is stated or implied.
- If nothing is actionable, return an empty tasks list.

Message:
%s`, text)
}

func eventPrompt(text string, now time.Time) string {
	return fmt.Sprintf(`Extract a calendar event from the text below.

The current date and time is %s.

Respond with JSON only, using exactly this shape:
{
  "title": "...",
  "start": "2024-01-31T15:00:00Z or null",
  "duration_minutes": 60,
  "description": "..."
}

Rules:
- Resolve relative dates ("tomorrow", "next friday") against the current time.
- Use null for start when no date or time can be determined.
- Default duration_minutes to 60 when unspecified.

Text:
%s`, now.Format(time.RFC3339), text)
}
