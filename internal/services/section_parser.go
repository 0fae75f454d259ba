// internal/services/section_parser.go
package services

import (
	"regexp"
	"strings"

	"github.com/Corphon/TubeDigest/internal/prompt"
)

// ParsedSection 解析器输出的一个章节，Body 含标题行
type ParsedSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// 连续多个空行视为一个分隔符
var blankRun = regexp.MustCompile(`\n{3,}`)

// ParseSections 按空行把 LLM 输出切分为章节。
// 只含空格或制表符的中间块仍占一个位置（标题和正文为空）；首尾空白不产生章节，空输入返回零个章节。
func ParseSections(text string) []ParsedSection {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = blankRun.ReplaceAllString(text, prompt.SectionDelimiter)

	blocks := strings.Split(text, prompt.SectionDelimiter)
	sections := make([]ParsedSection, 0, len(blocks))
	for _, block := range blocks {
		body := strings.TrimSpace(block)
		title := body
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			title = body[:i]
		}
		sections = append(sections, ParsedSection{
			Title: strings.TrimSpace(title),
			Body:  body,
		})
	}
	return sections
}
