// cmd/server/main.go
package main

import (
	"log"

	"github.com/Corphon/TubeDigest/internal/app"
)

func main() {
	log.Println("🚀 启动 TubeDigest 服务器...")

	application := app.GetApp()
	if err := application.Initialize(); err != nil {
		log.Fatalf("❌ 初始化失败: %v", err)
	}
	cfg := application.GetConfig()
	log.Printf("🌐 服务器启动在端口 %s", cfg.Port)
	log.Printf("🔗 访问地址: http://localhost:%s", cfg.Port)

	if err := application.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}
