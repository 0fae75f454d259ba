// internal/models/summary.go
package models

import "strings"

// TranscriptFragment 字幕接口返回的一条带时间的文本
type TranscriptFragment struct {
	Start    float64 `json:"start"`              // 起始偏移（秒）
	Duration float64 `json:"duration,omitempty"` // 接口提供时保留，核心逻辑不使用
	Text     string  `json:"text"`
}

// Transcript 一个视频会话内不可变的字幕
type Transcript struct {
	VideoID   string               `json:"video_id"`
	Fragments []TranscriptFragment `json:"fragments"`
	FullText  string               `json:"full_text"`
}

// NewTranscript 由有序片段构建字幕，FullText 以单个空格拼接
func NewTranscript(videoID string, fragments []TranscriptFragment) *Transcript {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return &Transcript{
		VideoID:   videoID,
		Fragments: fragments,
		FullText:  strings.Join(texts, " "),
	}
}

// Duration 以最后一个片段的起始时间作为总时长
func (t *Transcript) Duration() float64 {
	if t == nil || len(t.Fragments) == 0 {
		return 0
	}
	return t.Fragments[len(t.Fragments)-1].Start
}

// Slice 返回 [start, end) 窗口内的片段文本；end 为 nil 表示直到字幕结束。
// 窗口起点落在某个片段中间时，该片段也计入，因此窗口内没有片段起点时仍能取到文本。
func (t *Transcript) Slice(start float64, end *float64) string {
	if t == nil || len(t.Fragments) == 0 {
		return ""
	}
	frags := t.Fragments

	first := 0
	for i, f := range frags {
		if f.Start > start {
			break
		}
		first = i
	}
	for first > 0 && frags[first-1].Start == frags[first].Start {
		first--
	}
	covering := frags[first].Start <= start

	var parts []string
	for i := first; i < len(frags); i++ {
		f := frags[i]
		if end != nil && f.Start >= *end && !(covering && f.Start == frags[first].Start) {
			break
		}
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

// SectionRecord 摘要中的一个章节
type SectionRecord struct {
	Index     int      `json:"index"`      // 解析时分配，之后不变
	Title     string   `json:"title"`      // 可由用户编辑
	Body      string   `json:"body"`       // 可由编辑或重新生成替换
	StartTime float64  `json:"start_time"` // 由时间分配器分配，之后不变
	EndTime   *float64 `json:"end_time"`   // nil 表示延续到字幕结束
}

// SectionSet 按解析顺序排列的章节集合，数量在生成后固定
type SectionSet struct {
	Sections []*SectionRecord `json:"sections"`
}

// Len 返回章节数
func (s *SectionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Sections)
}

// All 返回全部章节，nil 集合返回 nil
func (s *SectionSet) All() []*SectionRecord {
	if s == nil {
		return nil
	}
	return s.Sections
}

// Get 按索引取章节，越界返回 nil
func (s *SectionSet) Get(index int) *SectionRecord {
	if s == nil || index < 0 || index >= len(s.Sections) {
		return nil
	}
	return s.Sections[index]
}

// Clone 深拷贝，供只读视图和测试比较使用
func (s *SectionSet) Clone() *SectionSet {
	if s == nil {
		return nil
	}
	out := &SectionSet{Sections: make([]*SectionRecord, len(s.Sections))}
	for i, sec := range s.Sections {
		cp := *sec
		if sec.EndTime != nil {
			end := *sec.EndTime
			cp.EndTime = &end
		}
		out.Sections[i] = &cp
	}
	return out
}
