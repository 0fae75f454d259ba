// internal/services/export_service.go
package services

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	apperrors "github.com/Corphon/TubeDigest/internal/errors"
	"github.com/Corphon/TubeDigest/internal/models"
	"github.com/Corphon/TubeDigest/internal/transcript"
)

// 支持的导出格式
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatDOCX     = "docx"
)

const (
	docxFontName = "Times New Roman"
	docxFontSize = 12
)

// ExportService 把章节集合序列化为静态文档，不修改会话状态
type ExportService struct {
	tempDir string
	now     func() time.Time
}

func NewExportService() *ExportService {
	return &ExportService{
		tempDir: os.TempDir(),
		now:     time.Now,
	}
}

// ExportDocument 导出所需的只读数据
type ExportDocument struct {
	VideoID  string
	Title    string
	Sections []*models.SectionRecord
}

// SupportedFormats 返回支持的导出格式
func SupportedFormats() []string {
	return []string{FormatHTML, FormatMarkdown, FormatDOCX}
}

// NormalizeFormat 空值视为 html；md 视为 markdown
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "html", "htm":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "docx", "word":
		return FormatDOCX, nil
	}
	return "", apperrors.NewValidationError(
		fmt.Sprintf("unsupported export format %q, supported: %v", format, SupportedFormats()), nil)
}

// Export 按索引顺序输出每个章节的时间戳标题和正文
func (s *ExportService) Export(doc ExportDocument, format string) (*models.ExportResult, error) {
	format, err := NormalizeFormat(format)
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		doc.Title = "Video summary " + doc.VideoID
	}

	var (
		content     []byte
		contentType string
		ext         string
	)
	switch format {
	case FormatHTML:
		content = []byte(s.formatAsHTML(doc))
		contentType, ext = "text/html; charset=utf-8", "html"
	case FormatMarkdown:
		content = []byte(s.formatAsMarkdown(doc))
		contentType, ext = "text/markdown; charset=utf-8", "md"
	case FormatDOCX:
		content, err = s.formatAsDOCX(doc)
		if err != nil {
			return nil, fmt.Errorf("生成docx失败: %w", err)
		}
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		ext = "docx"
	}

	generatedAt := s.now()
	return &models.ExportResult{
		VideoID:      doc.VideoID,
		Title:        doc.Title,
		Format:       format,
		ContentType:  contentType,
		Content:      content,
		FileName:     fmt.Sprintf("%s_summary_%s.%s", doc.VideoID, generatedAt.Format("20060102_150405"), ext),
		FileSize:     int64(len(content)),
		SectionCount: len(doc.Sections),
		GeneratedAt:  generatedAt,
	}, nil
}

// sectionHeading 返回 "HH:MM:SS 标题" 和跳转链接
func sectionHeading(videoID string, sec *models.SectionRecord) (string, string) {
	label := FormatTimestamp(sec.StartTime)
	if sec.Title != "" {
		label += " " + sec.Title
	}
	return label, transcript.WatchURL(videoID, int(sec.StartTime))
}

func (s *ExportService) formatAsHTML(doc ExportDocument) string {
	var content strings.Builder

	content.WriteString(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>`)
	content.WriteString(html.EscapeString(doc.Title))
	content.WriteString(`</title>
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; max-width: 860px; margin: 2em auto; line-height: 1.6; color: #333; }
h2 a { color: #c4302b; text-decoration: none; }
</style>
</head>
<body>
`)
	content.WriteString("<h1>" + html.EscapeString(doc.Title) + "</h1>\n")

	for _, sec := range doc.Sections {
		label, link := sectionHeading(doc.VideoID, sec)
		fmt.Fprintf(&content, "<h2><a href=\"%s\" target=\"_blank\">%s</a></h2>\n",
			html.EscapeString(link), html.EscapeString(label))
		for _, line := range strings.Split(sec.Body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			content.WriteString("<p>" + html.EscapeString(line) + "</p>\n")
		}
	}

	content.WriteString("</body>\n</html>\n")
	return content.String()
}

func (s *ExportService) formatAsMarkdown(doc ExportDocument) string {
	var content strings.Builder

	content.WriteString("# " + doc.Title + "\n\n")
	for _, sec := range doc.Sections {
		_, link := sectionHeading(doc.VideoID, sec)
		fmt.Fprintf(&content, "## [%s](%s)", FormatTimestamp(sec.StartTime), link)
		if sec.Title != "" {
			content.WriteString(" " + sec.Title)
		}
		content.WriteString("\n\n")
		if body := strings.TrimSpace(sec.Body); body != "" {
			content.WriteString(body + "\n\n")
		}
	}
	return content.String()
}

// formatAsDOCX 先写入临时文件再读回内容
func (s *ExportService) formatAsDOCX(doc ExportDocument) ([]byte, error) {
	document, err := godocx.NewDocument()
	if err != nil {
		return nil, err
	}

	addDocxRun(document.AddParagraph(""), doc.Title, true, 16)

	for _, sec := range doc.Sections {
		label, link := sectionHeading(doc.VideoID, sec)
		addDocxRun(document.AddParagraph(""), label, true, 14)
		addDocxRun(document.AddParagraph(""), link, false, 10)
		for _, line := range strings.Split(sec.Body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			addDocxRun(document.AddParagraph(""), line, false, docxFontSize)
		}
	}

	f, err := os.CreateTemp(s.tempDir, "tubedigest-*.docx")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := document.SaveTo(path); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Clean(path))
}

func addDocxRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(docxFontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
