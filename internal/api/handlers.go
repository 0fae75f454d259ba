// internal/api/handlers.go
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/TubeDigest/internal/auth"
	"github.com/Corphon/TubeDigest/internal/prompt"
	"github.com/Corphon/TubeDigest/internal/services"
	"github.com/Corphon/TubeDigest/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	Sessions  *services.SessionService // 会话服务
	LLM       *services.LLMService     // LLM 服务
	Metrics   *utils.SummaryMetrics    // 指标
	WebSocket *WebSocketManager        // 进度推送
	Response  *ResponseHelper          // 响应助手
	Limiter   *RateLimiter             // 限流
	Signer    *auth.CookieSigner       // 会话 cookie 签名

	logger *utils.Logger
}

// NewHandler 创建处理器，并把会话进度事件转发到 WebSocket
func NewHandler(sessions *services.SessionService, llmService *services.LLMService, metrics *utils.SummaryMetrics, ws *WebSocketManager, signer *auth.CookieSigner) (*Handler, error) {
	if signer == nil {
		var err error
		if signer, err = auth.NewCookieSigner(nil); err != nil {
			return nil, err
		}
	}
	if metrics == nil {
		metrics = utils.NewSummaryMetrics(nil, nil)
	}
	if ws == nil {
		ws = NewWebSocketManager(nil)
	}
	logger := utils.GetLogger()

	h := &Handler{
		Sessions:  sessions,
		LLM:       llmService,
		Metrics:   metrics,
		WebSocket: ws,
		Response:  NewResponseHelper(logger),
		Limiter:   NewRateLimiter(),
		Signer:    signer,
		logger:    logger,
	}
	sessions.Subscribe(func(event services.ProgressEvent) {
		ws.BroadcastToSession(event.SessionID, progressMessage(event))
	})
	return h, nil
}

// GenerateSummaryRequest 生成摘要的请求
type GenerateSummaryRequest struct {
	VideoURL string `json:"video_url" binding:"required"`
	Language string `json:"language"`
	Mode     string `json:"mode"`
	Provider string `json:"provider"`
}

// SectionBodyRequest 编辑或保存正文的请求
type SectionBodyRequest struct {
	Body *string `json:"body" binding:"required"`
}

// RegenerateRequest 重新生成章节的请求
type RegenerateRequest struct {
	Tone     string `json:"tone" binding:"required"`
	Provider string `json:"provider"`
}

// cookieSession 返回签名有效的会话ID，否则返回空串
func (h *Handler) cookieSession(c *gin.Context) string {
	value, err := c.Cookie(services.SessionCookieName)
	if err != nil {
		return ""
	}
	id, err := h.Signer.Verify(value)
	if err != nil {
		return ""
	}
	return id
}

// sessionID 读取会话 cookie，不存在、签名无效或已过期时创建新会话
func (h *Handler) sessionID(c *gin.Context) string {
	current := h.cookieSession(c)
	_, id := h.Sessions.Ensure(current)
	if id != current {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(services.SessionCookieName, h.Signer.Sign(id), 0, "/", "", c.Request.TLS != nil, true)
	}
	return id
}

// sectionIndex 解析路径中的章节索引
func (h *Handler) sectionIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorSectionInvalid, "section index must be an integer")
		return 0, false
	}
	return index, true
}

// respondSnapshot 返回会话当前快照
func (h *Handler) respondSnapshot(c *gin.Context, id string, message ...string) {
	view, err := h.Sessions.Snapshot(id)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, view, message...)
}

// IndexPage 主页面
func (h *Handler) IndexPage(c *gin.Context) {
	h.sessionID(c)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":     "TubeDigest",
		"languages": prompt.Languages(),
		"providers": h.LLM.ProviderStatuses(),
		"tones":     []prompt.Mode{prompt.ModeDetailed, prompt.ModeConcise, prompt.ModeFun},
		"formats":   services.SupportedFormats(),
	})
}

// GenerateSummary 拉取字幕并生成分章节摘要
func (h *Handler) GenerateSummary(c *gin.Context) {
	var req GenerateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "video_url is required", err.Error())
		return
	}

	mode, err := prompt.ParseMode(req.Mode)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	provider := services.ProviderKind(req.Provider)
	if req.Provider == "" {
		provider = h.LLM.DefaultProvider()
	}

	id := h.sessionID(c)
	if _, err := h.Sessions.Generate(c.Request.Context(), id, services.GenerateRequest{
		VideoInput: req.VideoURL,
		Language:   req.Language,
		Mode:       mode,
		Provider:   provider,
	}); err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.respondSnapshot(c, id, "summary generated")
}

// GetSummary 返回当前会话
func (h *Handler) GetSummary(c *gin.Context) {
	h.respondSnapshot(c, h.sessionID(c))
}

// SelectSection 切换当前章节
func (h *Handler) SelectSection(c *gin.Context) {
	index, ok := h.sectionIndex(c)
	if !ok {
		return
	}
	id := h.sessionID(c)
	if err := h.Sessions.SelectSection(id, index); err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.respondSnapshot(c, id)
}

// EditSection 编辑章节正文
func (h *Handler) EditSection(c *gin.Context) {
	h.updateBody(c, h.Sessions.EditBody, "section edited")
}

// SaveSection 保存章节正文
func (h *Handler) SaveSection(c *gin.Context) {
	h.updateBody(c, h.Sessions.Save, "section saved")
}

func (h *Handler) updateBody(c *gin.Context, apply func(id string, index int, text string) error, message string) {
	index, ok := h.sectionIndex(c)
	if !ok {
		return
	}
	var req SectionBodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "body is required", err.Error())
		return
	}

	id := h.sessionID(c)
	if err := apply(id, index, *req.Body); err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.respondSnapshot(c, id, message)
}

// RegenerateSection 按语气重新生成章节
func (h *Handler) RegenerateSection(c *gin.Context) {
	index, ok := h.sectionIndex(c)
	if !ok {
		return
	}
	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "tone is required", err.Error())
		return
	}
	tone, err := prompt.ParseMode(req.Tone)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	id := h.sessionID(c)
	if _, err := h.Sessions.Regenerate(c.Request.Context(), id, index, tone, services.ProviderKind(req.Provider)); err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.respondSnapshot(c, id, "section regenerated")
}

// ExportSummary 下载导出文件
func (h *Handler) ExportSummary(c *gin.Context) {
	result, err := h.Sessions.Export(h.sessionID(c), c.Query("format"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.ExportResponse(c, result)
}

// GetProviders 返回提供者配置状态
func (h *Handler) GetProviders(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"providers": h.LLM.ProviderStatuses(),
		"default":   h.LLM.DefaultProvider(),
		"languages": prompt.Languages(),
		"formats":   services.SupportedFormats(),
	})
}

// GetMetrics 返回运行指标
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"metrics":   h.Metrics.Collector().GetMetrics(),
		"sessions":  h.Sessions.Count(),
		"websocket": h.WebSocket.GetStatus(),
	})
}
