package tutor

import (
	"fmt"
	"strings"
)

func pickWordsPrompt(text string, grade, count int) string {
	examples := make([]string, count)
	for i := range examples {
		examples[i] = fmt.Sprintf("word%d", i+1)
	}
	return fmt.Sprintf(`
Given the following text from grade %[1]d, please:
1. Select exactly %[2]d words that would be appropriately challenging for a grade %[1]d student
2. Choose words that are important for vocabulary building and academic success
3. Return only the selected words as a comma-separated list, with no other text
4. Format example: %[3]s

Text: %[4]s
`, grade, count, strings.Join(examples, ", "), text)
}

func conversationPrompt(words []string, grade int) string {
	return fmt.Sprintf(`
You are helping create educational content for grade %[1]d students.
Given these vocabulary words: %[2]s

Create a natural conversation between two students that:
1. Uses all the vocabulary words naturally and appropriately
2. Has at least 5 sentences for each student
3. Focuses on topics relevant to grade %[1]d students
4. Includes subtle context clues for the vocabulary words

Return ONLY a JSON object with this exact format:
{
    "conversation": [
        {"speaker": "Student1", "text": "First line of dialogue"},
        {"speaker": "Student2", "text": "Response dialogue"},
        {"speaker": "Student1", "text": "Next line"},
        {"speaker": "Student2", "text": "Response"}
    ]
}

The conversation should flow naturally while incorporating the vocabulary words. Do not include any other text or explanation.
`, grade, strings.Join(words, ", "))
}
