package api

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// scriptFunction 返回 app.js 中某个顶层函数的源码
func scriptFunction(t *testing.T, src, name string) string {
	t.Helper()
	start := strings.Index(src, "function "+name+"(")
	if start < 0 {
		t.Fatalf("function %s not found in app.js", name)
	}
	end := strings.Index(src[start:], "\n    }\n")
	if end < 0 {
		t.Fatalf("function %s has no end", name)
	}
	return src[start : start+end]
}

// 在切换、重新生成、保存和导出之前，必须先处理还没发出的编辑
func TestScriptSettlesEditsBeforeSectionActions(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "web", "static", "js", "app.js"))
	if err != nil {
		t.Fatalf("read app.js: %v", err)
	}
	src := string(data)

	tests := []struct {
		function string
		settle   string
		request  string
	}{
		{"selectSection", "await flushEdit()", "request('POST'"},
		{"regenerateSection", "await flushEdit()", "request('POST'"},
		{"generate", "await flushEdit()", "request('POST'"},
		{"exportSummary", "await flushEdit()", "window.location.href"},
		{"saveSection", "await dropEdit()", "request('POST'"},
	}
	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			body := scriptFunction(t, src, tt.function)
			settle := strings.Index(body, tt.settle)
			req := strings.Index(body, tt.request)
			if settle < 0 || req < 0 || settle > req {
				t.Errorf("%s must call %s before %s:\n%s", tt.function, tt.settle, tt.request, body)
			}
		})
	}

	// 编辑在按键时记录章节和文本，定时器触发时不再读取
	edit := scriptFunction(t, src, "editSection")
	timer := strings.Index(edit, "setTimeout(")
	capture := strings.Index(edit, "activeIndex()")
	if timer < 0 || capture < 0 || capture > timer {
		t.Errorf("editSection must capture the section before scheduling:\n%s", edit)
	}
	if strings.Contains(edit[timer:], "activeIndex()") || strings.Contains(edit[timer:], "section-body") {
		t.Errorf("editSection timer reads live state:\n%s", edit)
	}
}
