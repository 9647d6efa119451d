package text

import "strings"

// MaxMessageLength is the chunk ceiling for outgoing Telegram messages, kept
// under the platform's 4096 limit to leave room for formatting entities.
const MaxMessageLength = 4000

// SplitMessage chops text into chunks of at most maxLength bytes,
// preferring to break at the last newline before the limit so code blocks and
// paragraphs stay readable. Concatenating the chunks (with the eaten
// whitespace) reconstitutes the original text.
func SplitMessage(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = MaxMessageLength
	}
	if len(text) <= maxLength {
		return []string{text}
	}

	var chunks []string
	for text != "" {
		if len(text) <= maxLength {
			chunks = append(chunks, text)
			break
		}

		splitAt := strings.LastIndex(text[:maxLength], "\n")
		if splitAt <= 0 {
			splitAt = maxLength
		}
		chunks = append(chunks, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " \t\n")
	}
	return chunks
}
