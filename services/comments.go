package services

import (
	"fmt"
	"strings"

	"ahatojira/models"
)

// commentsTitle はJIRAに追加する集約コメントの見出しです
const commentsTitle = "*Comments from Aha!:*"

// FormatComments はAha!のコメントを1つのJIRAコメントにまとめます。
// コメントがない場合は空文字列を返し、呼び出し側は書き込みを省略します。
func FormatComments(comments []models.Comment) string {
	if len(comments) == 0 {
		return ""
	}

	lines := []string{commentsTitle, ""}
	for _, c := range comments {
		header := fmt.Sprintf("*Commented by:* %s", withDefault(c.CreatedBy.Name, "Unknown User"))
		if c.CreatedBy.Email != "" {
			header += fmt.Sprintf(" (%s)", c.CreatedBy.Email)
		}
		header += fmt.Sprintf(" on %s", withDefault(c.CreatedAt, "Unknown Date"))

		lines = append(lines, "---", header, withDefault(c.Body, "No content"), "")
	}

	return strings.Join(lines, "\n")
}
