// internal/services/session_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/TubeDigest/internal/errors"
	"github.com/Corphon/TubeDigest/internal/models"
	"github.com/Corphon/TubeDigest/internal/prompt"
	"github.com/Corphon/TubeDigest/internal/utils"
)

// SessionCookieName 浏览器会话 cookie
const SessionCookieName = "tubedigest_session"

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

// SessionService 为每个浏览器维护独立的 Session，同一会话的操作串行执行
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	locks    *LockManager
	source   TranscriptSource
	llm      Completer
	exporter *ExportService
	ttl      time.Duration
	metrics  *utils.SummaryMetrics
	logger   *utils.Logger

	progressMu sync.RWMutex
	progress   []func(ProgressEvent)
}

// NewSessionService 创建会话服务
func NewSessionService(source TranscriptSource, completer Completer, exporter *ExportService, ttl time.Duration, metrics *utils.SummaryMetrics) *SessionService {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if exporter == nil {
		exporter = NewExportService()
	}
	if metrics == nil {
		metrics = utils.NewSummaryMetrics(nil, nil)
	}
	return &SessionService{
		sessions: make(map[string]*sessionEntry),
		locks:    NewLockManager(ttl, 0),
		source:   source,
		llm:      completer,
		exporter: exporter,
		ttl:      ttl,
		metrics:  metrics,
		logger:   utils.GetLogger(),
	}
}

// NewSessionID 生成随机会话ID
func NewSessionID() string {
	return uuid.NewString()
}

// Subscribe 注册进度回调，所有会话的事件都会送达
func (s *SessionService) Subscribe(fn func(ProgressEvent)) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.progress = append(s.progress, fn)
}

func (s *SessionService) publish(event ProgressEvent) {
	s.progressMu.RLock()
	handlers := s.progress
	s.progressMu.RUnlock()
	for _, fn := range handlers {
		fn(event)
	}
}

// Ensure 返回已有会话或创建新会话，id 无效时分配新ID
func (s *SessionService) Ensure(id string) (*Session, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[id]; ok && id != "" {
		entry.lastUsed = time.Now()
		return entry.session, id
	}

	id = NewSessionID()
	session := NewSession(id, s.source, s.llm, s.exporter)
	session.OnProgress(s.publish)
	s.sessions[id] = &sessionEntry{session: session, lastUsed: time.Now()}
	s.metrics.SetActiveSessions(len(s.sessions))
	return session, id
}

func (s *SessionService) get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("session not found or expired", nil)
	}
	entry.lastUsed = time.Now()
	return entry.session, nil
}

// withSession 在会话写锁内执行操作并记录指标
func (s *SessionService) withSession(id, action string, fn func(*Session) error) error {
	session, err := s.get(id)
	if err != nil {
		return err
	}
	err = s.locks.ExecuteWithLock(id, func() error { return fn(session) })
	s.metrics.RecordAction(action, err)
	if err != nil {
		s.metrics.RecordError(string(apperrors.TypeOf(err)), "session")
	}
	return err
}

// Generate 生成整篇摘要
func (s *SessionService) Generate(ctx context.Context, id string, req GenerateRequest) (*models.SectionSet, error) {
	var set *models.SectionSet
	err := s.withSession(id, "generate", func(session *Session) error {
		var err error
		set, err = session.Generate(ctx, req)
		return err
	})
	if err == nil {
		s.logger.Info("Summary generated", map[string]interface{}{
			"session":  id,
			"sections": set.Len(),
			"provider": req.Provider,
		})
	}
	return set, err
}

// SelectSection 切换当前章节
func (s *SessionService) SelectSection(id string, index int) error {
	return s.withSession(id, "select", func(session *Session) error {
		return session.SelectSection(index)
	})
}

// EditBody 编辑章节正文
func (s *SessionService) EditBody(id string, index int, text string) error {
	return s.withSession(id, "edit", func(session *Session) error {
		return session.EditBody(index, text)
	})
}

// Save 保存章节正文
func (s *SessionService) Save(id string, index int, text string) error {
	return s.withSession(id, "save", func(session *Session) error {
		return session.Save(index, text)
	})
}

// Regenerate 按语气重新生成单个章节
func (s *SessionService) Regenerate(ctx context.Context, id string, index int, tone prompt.Mode, provider ProviderKind) (string, error) {
	var body string
	err := s.withSession(id, "regenerate", func(session *Session) error {
		var err error
		body, err = session.Regenerate(ctx, index, tone, provider)
		return err
	})
	return body, err
}

// Export 导出当前章节
func (s *SessionService) Export(id, format string) (*models.ExportResult, error) {
	session, err := s.get(id)
	if err != nil {
		return nil, err
	}
	var result *models.ExportResult
	err = s.locks.ExecuteWithReadLock(id, func() error {
		var err error
		result, err = session.Export(format)
		return err
	})
	s.metrics.RecordAction("export", err)
	return result, err
}

// Snapshot 返回会话只读快照
func (s *SessionService) Snapshot(id string) (SessionView, error) {
	session, err := s.get(id)
	if err != nil {
		return SessionView{}, err
	}
	var view SessionView
	s.locks.ExecuteWithReadLock(id, func() error {
		view = session.Snapshot()
		return nil
	})
	return view, nil
}

// Count 当前会话数
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup 删除超过 TTL 未使用的会话，返回删除数量
func (s *SessionService) Cleanup(now time.Time) int {
	s.mu.Lock()
	var expired []string
	for id, entry := range s.sessions {
		if now.Sub(entry.lastUsed) > s.ttl {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	for _, id := range expired {
		s.locks.Remove(id)
	}
	s.metrics.SetActiveSessions(remaining)
	if len(expired) > 0 {
		s.logger.Info("Expired sessions removed", map[string]interface{}{
			"removed":   len(expired),
			"remaining": remaining,
		})
	}
	return len(expired)
}

// StartCleanup 定期清理过期会话，直到 ctx 结束
func (s *SessionService) StartCleanup(ctx context.Context) {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Cleanup(now)
			}
		}
	}()
}
