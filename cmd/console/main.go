// cmd/console/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"

	"github.com/Corphon/TubeDigest/internal/app"
	"github.com/Corphon/TubeDigest/internal/config"
	"github.com/Corphon/TubeDigest/internal/di"
	"github.com/Corphon/TubeDigest/internal/prompt"
	"github.com/Corphon/TubeDigest/internal/services"
	"github.com/Corphon/TubeDigest/internal/transcript"
	"github.com/Corphon/TubeDigest/internal/utils"
)

const (
	consoleSessionID = "console"
	cliBoxMaxWidth   = 90
)

var input = bufio.NewScanner(os.Stdin)

type console struct {
	sessions *services.SessionService
	llm      *services.LLMService
}

func main() {
	fmt.Println("🚀 TubeDigest Console")
	fmt.Println("=====================")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	config.SetCurrentConfig(cfg)

	// 控制台输出留给交互，日志只写文件
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "console.log")); err != nil {
		log.Printf("⚠️ 无法初始化日志文件: %v", err)
	} else {
		logger.SetOutput(nil)
	}
	defer logger.Close()

	if err := app.InitServices(); err != nil {
		log.Fatalf("❌ 初始化服务失败: %v", err)
	}
	container := di.GetContainer()
	sessions, err := di.Resolve[*services.SessionService](container, di.ServiceSessions)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	llmService, err := di.Resolve[*services.LLMService](container, di.ServiceLLM)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	sessions.Ensure(consoleSessionID)
	sessions.Subscribe(func(event services.ProgressEvent) {
		if event.Stage != services.StageCompleted {
			fmt.Printf("  … %s\n", event.Stage)
		}
	})

	c := &console{sessions: sessions, llm: llmService}
	for {
		showMenu()
		switch getUserInput("选择: ") {
		case "1", "generate":
			c.generate()
		case "2", "list":
			c.list()
		case "3", "show":
			c.show()
		case "4", "edit":
			c.edit()
		case "5", "regenerate", "regen":
			c.regenerate()
		case "6", "export":
			c.export()
		case "7", "prompt":
			c.showPrompt()
		case "8", "providers":
			c.providers()
		case "9", "encrypt":
			encryptValue()
		case "0", "quit", "exit":
			fmt.Println("再见")
			return
		default:
			fmt.Println("无效选择")
		}
		fmt.Println()
	}
}

func showMenu() {
	printBox("TubeDigest", strings.Join([]string{
		"1) 生成摘要",
		"2) 章节列表",
		"3) 查看章节",
		"4) 编辑章节",
		"5) 重新生成章节",
		"6) 导出",
		"7) 查看提示词与原始输出",
		"8) 提供者状态",
		"9) 加密配置值",
		"0) 退出",
	}, "\n"))
}

// 获取用户输入
func getUserInput(label string) string {
	fmt.Print(label)
	if !input.Scan() {
		return "exit"
	}
	return strings.TrimSpace(input.Text())
}

// 获取用户输入 (带默认值)
func getUserInputWithDefault(label, defaultValue string) string {
	if defaultValue != "" {
		label = fmt.Sprintf("%s [默认: %s]: ", label, defaultValue)
	} else {
		label += ": "
	}
	if v := getUserInput(label); v != "" {
		return v
	}
	return defaultValue
}

// readBlock 读取多行文本，单独一行 "." 结束
func readBlock() string {
	var lines []string
	for input.Scan() {
		line := input.Text()
		if line == "." {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (c *console) snapshot() (services.SessionView, bool) {
	view, err := c.sessions.Snapshot(consoleSessionID)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return view, false
	}
	if view.State != services.StateLoaded {
		fmt.Println("还没有摘要，请先生成")
		return view, false
	}
	return view, true
}

func (c *console) sectionIndex(view services.SessionView) (int, bool) {
	index, err := strconv.Atoi(getUserInputWithDefault("章节编号", strconv.Itoa(view.ActiveIndex)))
	if err != nil || index < 0 || index >= len(view.Sections) {
		fmt.Printf("❌ 章节编号应在 0 到 %d 之间\n", len(view.Sections)-1)
		return 0, false
	}
	if err := c.sessions.SelectSection(consoleSessionID, index); err != nil {
		fmt.Printf("❌ %v\n", err)
		return 0, false
	}
	return index, true
}

// clipboardVideo 剪贴板中是可识别的视频链接时返回它
func clipboardVideo() string {
	text, err := clipboard.ReadAll()
	if err != nil {
		return ""
	}
	text = strings.TrimSpace(text)
	if _, err := transcript.ParseVideoID(text); err != nil {
		return ""
	}
	return text
}

func (c *console) generate() {
	url := getUserInputWithDefault("YouTube 链接或视频ID", clipboardVideo())
	if url == "" {
		fmt.Println("❌ 链接不能为空")
		return
	}
	codes := make([]string, 0, 3)
	for _, l := range prompt.Languages() {
		codes = append(codes, l.Code)
	}
	language := getUserInputWithDefault("语言 ("+strings.Join(codes, "/")+")", prompt.DefaultLanguage)
	mode := getUserInputWithDefault("模式 (sectioned/plain)", string(prompt.ModeSectioned))
	provider := getUserInputWithDefault("提供者 (github/openrouter)", string(c.llm.DefaultProvider()))

	fmt.Println("正在生成...")
	set, err := c.sessions.Generate(context.Background(), consoleSessionID, services.GenerateRequest{
		VideoInput: url,
		Language:   language,
		Mode:       prompt.Mode(mode),
		Provider:   services.ProviderKind(provider),
	})
	if err != nil {
		fmt.Printf("❌ 生成失败: %v\n", err)
		return
	}
	fmt.Printf("✅ 生成 %d 个章节\n", set.Len())
	c.list()
}

func (c *console) list() {
	view, ok := c.snapshot()
	if !ok {
		return
	}
	lines := make([]string, 0, len(view.Sections))
	for _, sec := range view.Sections {
		marker := " "
		if sec.Index == view.ActiveIndex {
			marker = "▶"
		}
		lines = append(lines, fmt.Sprintf("%s %2d  %s  %s", marker, sec.Index, sec.StartLabel, sec.Title))
	}
	printBox(view.VideoID, strings.Join(lines, "\n"))
}

func (c *console) show() {
	view, ok := c.snapshot()
	if !ok {
		return
	}
	index, ok := c.sectionIndex(view)
	if !ok {
		return
	}
	sec := view.Sections[index]
	title := sec.StartLabel + " " + sec.Title
	if sec.EndLabel != "" {
		title = sec.StartLabel + " - " + sec.EndLabel + " " + sec.Title
	}
	printBox(title, sec.Body+"\n\n"+sec.Link)
}

func (c *console) edit() {
	view, ok := c.snapshot()
	if !ok {
		return
	}
	index, ok := c.sectionIndex(view)
	if !ok {
		return
	}
	fmt.Println("输入新的正文，单独一行 . 结束:")
	body := readBlock()
	if err := c.sessions.Save(consoleSessionID, index, body); err != nil {
		fmt.Printf("❌ 保存失败: %v\n", err)
		return
	}
	fmt.Println("✅ 已保存")
}

func (c *console) regenerate() {
	view, ok := c.snapshot()
	if !ok {
		return
	}
	index, ok := c.sectionIndex(view)
	if !ok {
		return
	}
	tone := getUserInputWithDefault("语气 (detailed/concise/fun)", string(prompt.ModeDetailed))
	mode, err := prompt.ParseMode(tone)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("正在重新生成...")
	body, err := c.sessions.Regenerate(context.Background(), consoleSessionID, index, mode, view.Provider)
	if err != nil {
		fmt.Printf("❌ 重新生成失败: %v\n", err)
		return
	}
	printBox(view.Sections[index].Title, body)
}

func (c *console) export() {
	if _, ok := c.snapshot(); !ok {
		return
	}
	format := getUserInputWithDefault("导出格式 ("+strings.Join(services.SupportedFormats(), "/")+")", services.FormatMarkdown)
	result, err := c.sessions.Export(consoleSessionID, format)
	if err != nil {
		fmt.Printf("❌ 导出失败: %v\n", err)
		return
	}
	path := getUserInputWithDefault("保存到 (文件路径，或 clipboard)", result.FileName)
	if path == "clipboard" {
		if result.Format == services.FormatDOCX {
			fmt.Println("❌ DOCX 不能复制到剪贴板")
			return
		}
		if err := clipboard.WriteAll(string(result.Content)); err != nil {
			fmt.Printf("❌ 复制失败: %v\n", err)
			return
		}
		fmt.Println("✅ 已复制到剪贴板")
		return
	}
	if err := os.WriteFile(path, result.Content, 0644); err != nil {
		fmt.Printf("❌ 写入文件失败: %v\n", err)
		return
	}
	fmt.Printf("✅ 导出成功！\n文件路径: %s\n大小: %d 字节\n", path, result.FileSize)
}

func (c *console) showPrompt() {
	view, ok := c.snapshot()
	if !ok {
		return
	}
	printBox("System", view.Prompt.System)
	printBox("User", view.Prompt.User)
	printBox("Raw output", view.RawOutput)
}

func (c *console) providers() {
	lines := []string{}
	for _, p := range c.llm.ProviderStatuses() {
		status := "❌ 未配置"
		if p.Configured {
			status = "✅ 已配置"
		}
		if p.Default {
			status += " (默认)"
		}
		lines = append(lines, fmt.Sprintf("%-12s %-20s %s", p.Name, p.Model, status))
	}
	printBox("Providers", strings.Join(lines, "\n"))
}

// encryptValue 生成可写入 config.yaml 的 "enc:" 密文
func encryptValue() {
	key := os.Getenv(config.SecretKeyEnv)
	if key == "" {
		key = getUserInput("加密密钥 (" + config.SecretKeyEnv + "): ")
	}
	value := getUserInput("要加密的值: ")
	if value == "" {
		fmt.Println("❌ 值不能为空")
		return
	}
	sealed, err := utils.Encrypt(value, key)
	if err != nil {
		fmt.Printf("❌ 加密失败: %v\n", err)
		return
	}
	printBox("config.yaml", sealed)
}

func printBox(title, content string) {
	wrappedLines := wrapContentForBox(content, cliBoxMaxWidth)
	maxWidth := utf8.RuneCountInString(title)
	for _, line := range wrappedLines {
		if w := utf8.RuneCountInString(line); w > maxWidth {
			maxWidth = w
		}
	}
	border := strings.Repeat("─", maxWidth+2)
	fmt.Println("┌" + border + "┐")
	if title != "" {
		fmt.Printf("│ %s │\n", padRight(title, maxWidth))
		fmt.Println("├" + border + "┤")
	}
	for _, line := range wrappedLines {
		fmt.Printf("│ %s │\n", padRight(line, maxWidth))
	}
	fmt.Println("└" + border + "┘")
}

func wrapContentForBox(content string, maxWidth int) []string {
	var result []string
	for _, rawLine := range strings.Split(content, "\n") {
		runes := []rune(strings.TrimRight(rawLine, " "))
		for len(runes) > maxWidth {
			result = append(result, string(runes[:maxWidth]))
			runes = runes[maxWidth:]
		}
		result = append(result, string(runes))
	}
	return result
}

func padRight(text string, width int) string {
	current := utf8.RuneCountInString(text)
	if current >= width {
		return text
	}
	return text + strings.Repeat(" ", width-current)
}
