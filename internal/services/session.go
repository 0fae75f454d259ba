// internal/services/session.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/TubeDigest/internal/errors"
	"github.com/Corphon/TubeDigest/internal/models"
	"github.com/Corphon/TubeDigest/internal/prompt"
	"github.com/Corphon/TubeDigest/internal/transcript"
)

// TranscriptSource 获取视频字幕
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (*models.Transcript, error)
}

// Completer 把提示词发送给指定提供者
type Completer interface {
	Complete(ctx context.Context, provider ProviderKind, pair prompt.Pair) (string, error)
}

// SessionState 会话状态
type SessionState string

const (
	StateEmpty  SessionState = "empty"
	StateLoaded SessionState = "loaded"
)

// 进度阶段，通过 websocket 推送给界面
const (
	StageFetchingTranscript  = "fetching_transcript"
	StageGeneratingSummary   = "generating_summary"
	StageRegeneratingSection = "regenerating_section"
	StageCompleted           = "completed"
	StageFailed              = "failed"
)

// ProgressEvent 一次进度通知
type ProgressEvent struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Action    string    `json:"action"`
	Index     *int      `json:"index,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerateRequest 生成整篇摘要的参数
type GenerateRequest struct {
	VideoInput string       `json:"video_url"`
	Language   string       `json:"language"`
	Mode       prompt.Mode  `json:"mode"`
	Provider   ProviderKind `json:"provider"`
}

// Session 一个浏览器会话拥有的摘要状态。
// 本身不做同步，并发访问由 SessionService 的会话锁串行化。
type Session struct {
	ID string

	source     TranscriptSource
	llm        Completer
	exporter   *ExportService
	onProgress func(ProgressEvent)

	transcript *models.Transcript
	sections   *models.SectionSet
	active     int
	drafts     map[int]string

	language  string
	mode      prompt.Mode
	provider  ProviderKind
	prompt    prompt.Pair
	rawOutput string

	createdAt time.Time
	updatedAt time.Time
}

// NewSession 创建空会话
func NewSession(id string, source TranscriptSource, completer Completer, exporter *ExportService) *Session {
	if exporter == nil {
		exporter = NewExportService()
	}
	now := time.Now()
	return &Session{
		ID:        id,
		source:    source,
		llm:       completer,
		exporter:  exporter,
		drafts:    make(map[int]string),
		createdAt: now,
		updatedAt: now,
	}
}

// OnProgress 设置进度回调
func (s *Session) OnProgress(fn func(ProgressEvent)) {
	s.onProgress = fn
}

func (s *Session) emit(action, stage string, index *int, message string) {
	if s.onProgress == nil {
		return
	}
	s.onProgress(ProgressEvent{
		SessionID: s.ID,
		Stage:     stage,
		Action:    action,
		Index:     index,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// State 当前状态
func (s *Session) State() SessionState {
	if s.sections.Len() == 0 {
		return StateEmpty
	}
	return StateLoaded
}

// Generate 拉取字幕、生成摘要、解析章节并分配时间。
// 全部成功后才替换当前状态，任何一步失败都保留原状态。
func (s *Session) Generate(ctx context.Context, req GenerateRequest) (*models.SectionSet, error) {
	videoID, err := transcript.ParseVideoID(req.VideoInput)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = prompt.ModeSectioned
	}
	if mode != prompt.ModeSectioned && mode != prompt.ModePlain {
		return nil, apperrors.NewValidationError(fmt.Sprintf("mode %q cannot be used for a full summary", mode), nil)
	}
	provider, err := ParseProviderKind(string(req.Provider))
	if err != nil {
		return nil, err
	}
	language := req.Language
	if strings.TrimSpace(language) == "" {
		language = prompt.DefaultLanguage
	}

	result, err := s.generate(ctx, videoID, language, mode, provider)
	if err != nil {
		s.emit("generate", StageFailed, nil, err.Error())
		return nil, err
	}

	s.transcript = result.transcript
	s.sections = result.sections
	s.active = 0
	s.drafts = make(map[int]string)
	s.language = language
	s.mode = mode
	s.provider = provider
	s.prompt = result.pair
	s.rawOutput = result.raw
	s.updatedAt = time.Now()

	s.emit("generate", StageCompleted, nil, fmt.Sprintf("%d sections", s.sections.Len()))
	return s.sections.Clone(), nil
}

type generated struct {
	transcript *models.Transcript
	sections   *models.SectionSet
	pair       prompt.Pair
	raw        string
}

// generate 只计算新状态，不修改会话
func (s *Session) generate(ctx context.Context, videoID, language string, mode prompt.Mode, provider ProviderKind) (*generated, error) {
	s.emit("generate", StageFetchingTranscript, nil, videoID)
	tr, err := s.source.Fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tr.FullText) == "" {
		return nil, apperrors.NewFetchError("transcript for "+videoID+" has no text", nil)
	}

	pair, err := prompt.Build(mode, language, tr.FullText)
	if err != nil {
		return nil, err
	}

	s.emit("generate", StageGeneratingSummary, nil, string(provider))
	raw, err := s.llm.Complete(ctx, provider, pair)
	if err != nil {
		return nil, err
	}

	parsed := ParseSections(raw)
	if len(parsed) == 0 {
		return nil, apperrors.NewParseError("the model returned no sections", nil)
	}

	starts := AllocateStartTimes(tr.Duration(), len(parsed))
	set := &models.SectionSet{Sections: make([]*models.SectionRecord, len(parsed))}
	for i, p := range parsed {
		set.Sections[i] = &models.SectionRecord{
			Index:     i,
			Title:     p.Title,
			Body:      p.Body,
			StartTime: starts[i],
			EndTime:   EndTime(starts, i),
		}
	}

	return &generated{transcript: tr, sections: set, pair: pair, raw: raw}, nil
}

func (s *Session) section(index int) (*models.SectionRecord, error) {
	if s.State() != StateLoaded {
		return nil, apperrors.NewValidationError("no summary has been generated yet", nil)
	}
	sec := s.sections.Get(index)
	if sec == nil {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("section index %d out of range [0, %d)", index, s.sections.Len()), nil)
	}
	return sec, nil
}

// SelectSection 切换当前显示的章节，不修改章节内容
func (s *Session) SelectSection(index int) error {
	if _, err := s.section(index); err != nil {
		return err
	}
	s.active = index
	return nil
}

// ActiveIndex 当前章节索引
func (s *Session) ActiveIndex() int {
	return s.active
}

// EditBody 用编辑内容替换章节正文，同时记入编辑缓冲
func (s *Session) EditBody(index int, text string) error {
	sec, err := s.section(index)
	if err != nil {
		return err
	}
	s.drafts[index] = text
	sec.Body = text
	s.updatedAt = time.Now()
	return nil
}

// Draft 返回未保存的编辑内容
func (s *Session) Draft(index int) (string, bool) {
	text, ok := s.drafts[index]
	return text, ok
}

// Save 把显示中的内容写入章节并清除编辑缓冲
func (s *Session) Save(index int, text string) error {
	sec, err := s.section(index)
	if err != nil {
		return err
	}
	delete(s.drafts, index)
	if sec.Body == text {
		return nil
	}
	sec.Body = text
	s.updatedAt = time.Now()
	return nil
}

// Regenerate 用章节时间窗口内的原始字幕按指定语气重写正文。
// 输入始终来自原始字幕而不是当前正文；只替换 Body。
func (s *Session) Regenerate(ctx context.Context, index int, tone prompt.Mode, provider ProviderKind) (string, error) {
	sec, err := s.section(index)
	if err != nil {
		return "", err
	}
	if !tone.IsTone() {
		return "", apperrors.NewValidationError(fmt.Sprintf("tone must be detailed, concise or fun, got %q", tone), nil)
	}
	if provider == "" {
		provider = s.provider
	}
	if provider, err = ParseProviderKind(string(provider)); err != nil {
		return "", err
	}

	source := s.transcript.Slice(sec.StartTime, sec.EndTime)
	if strings.TrimSpace(source) == "" {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("section %d has no transcript text in its time window", index), nil)
	}

	pair, err := prompt.Build(tone, s.language, source)
	if err != nil {
		return "", err
	}

	idx := index
	s.emit("regenerate", StageRegeneratingSection, &idx, string(tone))
	body, err := s.llm.Complete(ctx, provider, pair)
	if err != nil {
		s.emit("regenerate", StageFailed, &idx, err.Error())
		return "", err
	}

	sec.Body = body
	delete(s.drafts, index)
	s.prompt = pair
	s.rawOutput = body
	s.updatedAt = time.Now()

	s.emit("regenerate", StageCompleted, &idx, string(tone))
	return body, nil
}

// Export 导出当前章节，只读
func (s *Session) Export(format string) (*models.ExportResult, error) {
	if s.State() != StateLoaded {
		return nil, apperrors.NewValidationError("no summary has been generated yet", nil)
	}
	return s.exporter.Export(ExportDocument{
		VideoID:  s.transcript.VideoID,
		Sections: s.sections.Clone().Sections,
	}, format)
}

// SectionView 章节的展示数据
type SectionView struct {
	Index      int      `json:"index"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	StartTime  float64  `json:"start_time"`
	EndTime    *float64 `json:"end_time"`
	StartLabel string   `json:"start_label"`
	EndLabel   string   `json:"end_label,omitempty"`
	Link       string   `json:"link"`
	Draft      *string  `json:"draft,omitempty"`
}

// SessionView 会话的只读快照
type SessionView struct {
	ID          string        `json:"id"`
	State       SessionState  `json:"state"`
	VideoID     string        `json:"video_id,omitempty"`
	Language    string        `json:"language,omitempty"`
	Mode        prompt.Mode   `json:"mode,omitempty"`
	Provider    ProviderKind  `json:"provider,omitempty"`
	ActiveIndex int           `json:"active_index"`
	Sections    []SectionView `json:"sections"`
	Prompt      prompt.Pair   `json:"prompt"`
	RawOutput   string        `json:"raw_output,omitempty"`
	Duration    float64       `json:"duration"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Snapshot 返回界面需要的纯数据
func (s *Session) Snapshot() SessionView {
	view := SessionView{
		ID:          s.ID,
		State:       s.State(),
		Language:    s.language,
		Mode:        s.mode,
		Provider:    s.provider,
		ActiveIndex: s.active,
		Sections:    []SectionView{},
		Prompt:      s.prompt,
		RawOutput:   s.rawOutput,
		UpdatedAt:   s.updatedAt,
	}
	if s.transcript != nil {
		view.VideoID = s.transcript.VideoID
		view.Duration = s.transcript.Duration()
	}

	for _, sec := range s.sections.Clone().All() {
		sv := SectionView{
			Index:      sec.Index,
			Title:      sec.Title,
			Body:       sec.Body,
			StartTime:  sec.StartTime,
			EndTime:    sec.EndTime,
			StartLabel: FormatTimestamp(sec.StartTime),
			Link:       transcript.WatchURL(view.VideoID, int(sec.StartTime)),
		}
		if sec.EndTime != nil {
			sv.EndLabel = FormatTimestamp(*sec.EndTime)
		}
		if draft, ok := s.drafts[sec.Index]; ok {
			d := draft
			sv.Draft = &d
		}
		view.Sections = append(view.Sections, sv)
	}
	return view
}
