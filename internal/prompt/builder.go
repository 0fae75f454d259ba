// Package prompt 构造发送给 LLM 的 system/user 提示词对。
package prompt

import (
	"fmt"
	"strings"

	apperrors "github.com/Corphon/TubeDigest/internal/errors"
)

// Mode 摘要模式
type Mode string

const (
	ModeSectioned Mode = "sectioned" // 整篇分章节摘要
	ModeDetailed  Mode = "detailed"  // 单章节：更详细
	ModeConcise   Mode = "concise"   // 单章节：更简洁
	ModeFun       Mode = "fun"       // 单章节：更有趣
	ModePlain     Mode = "plain"     // 整篇单次摘要，不保证章节分隔
)

// SectionDelimiter 章节之间的分隔符。sectioned 提示词要求模型遵守，
// 章节解析器按它切分。
const SectionDelimiter = "\n\n"

// Pair 一次调用的 system/user 消息
type Pair struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Language 界面可选的输出语言
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages 返回界面提供的语言列表
func Languages() []Language {
	return []Language{
		{Code: "en", Name: "English"},
		{Code: "zh-TW", Name: "Traditional Chinese"},
		{Code: "zh-CN", Name: "Simplified Chinese"},
	}
}

// DefaultLanguage 未指定语言时使用
const DefaultLanguage = "en"

// LanguageName 把语言代码转换为提示词里使用的名称，未知代码原样返回
func LanguageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		code = DefaultLanguage
	}
	for _, lang := range Languages() {
		if strings.EqualFold(lang.Code, code) {
			return lang.Name
		}
	}
	return code
}

// ParseMode 校验模式名称
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeSectioned, ModeDetailed, ModeConcise, ModeFun, ModePlain:
		return m, nil
	case "":
		return ModeSectioned, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown summary mode %q", s), nil)
}

// IsTone 是否为单章节重新生成可用的语气
func (m Mode) IsTone() bool {
	return m == ModeDetailed || m == ModeConcise || m == ModeFun
}

const sectionedSystem = `You summarize video transcripts in %s.
Split the summary into sections that follow the order of the transcript.
Formatting rules:
- Start every section with a one-line subheading on its own line.
- Put the section text directly under the subheading.
- Separate sections with exactly one blank line.
- Never put a blank line inside a section.
- Do not add an introduction or a closing remark outside the sections.`

const plainSystem = "Summarize the following transcript in %s;" +
	"The report should use subheadings and standardized typesetting to make the main text clearer."

var toneInstructions = map[Mode]string{
	ModeDetailed: "Rewrite it as a more detailed summary. Keep every concrete fact, name and number that appears in the excerpt.",
	ModeConcise:  "Rewrite it as a short, concise summary of two or three sentences.",
	ModeFun:      "Rewrite it as a lively, fun summary with a light sense of humour. Do not invent facts.",
}

const toneSystem = `You summarize one excerpt of a video transcript in %s.
%s
Answer with plain text only, without a heading and without blank lines.`

// Build 根据模式、语言和字幕文本构造提示词
func Build(mode Mode, language, text string) (Pair, error) {
	lang := LanguageName(language)
	text = strings.TrimSpace(text)

	switch mode {
	case ModeSectioned:
		return Pair{
			System: fmt.Sprintf(sectionedSystem, lang),
			User:   text,
		}, nil
	case ModePlain:
		return Pair{
			System: fmt.Sprintf(plainSystem, lang),
			User:   text,
		}, nil
	case ModeDetailed, ModeConcise, ModeFun:
		return Pair{
			System: fmt.Sprintf(toneSystem, lang, toneInstructions[mode]),
			User:   text,
		}, nil
	}
	return Pair{}, apperrors.NewValidationError(fmt.Sprintf("unknown summary mode %q", mode), nil)
}
