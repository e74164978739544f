package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"assistant-core/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("assistant-core cli 0.1.0")
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runServerStart()
		} else {
			fmt.Fprintf(os.Stderr, "Usage: assistant server start\n")
			os.Exit(1)
		}
	case "chat":
		runChat(args)
	case "memories":
		runMemories()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: assistant <command> [args]")
	fmt.Println("  version          - 显示版本")
	fmt.Println("  health           - API 健康检查")
	fmt.Println("  config           - 显示配置概要")
	fmt.Println("  server start     - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  chat [--privacy] - 交互式对话（--privacy 只走本地后端）")
	fmt.Println("  memories         - 列出长期记忆")
}

func apiBase() string {
	if v := os.Getenv("ASSISTANT_API"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:8080"
}

func runHealth() {
	resp, err := http.Get(apiBase() + "/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		fmt.Println("ok")
	} else {
		fmt.Printf("status %d\n", resp.StatusCode)
		os.Exit(1)
	}
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("providers.cloud=%s/%s\n", cfg.Providers.Cloud.Provider, cfg.Providers.Cloud.Model)
	fmt.Printf("providers.local=%s/%s\n", cfg.Providers.Local.Provider, cfg.Providers.Local.Model)
	fmt.Printf("cache.store=%s\n", cfg.Cache.Store.Type)
	fmt.Printf("memory.store=%s\n", cfg.Memory.Store.Type)
}

func runServerStart() {
	c := exec.Command("go", "run", "./cmd/api")
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server start: %v\n", err)
		os.Exit(1)
	}
}

func runChat(args []string) {
	privacy := false
	for _, a := range args {
		if a == "--privacy" {
			privacy = true
		}
	}
	sessionID := ""
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		msg := strings.TrimSpace(line)
		if msg == "" {
			continue
		}
		if msg == "exit" || msg == "quit" {
			break
		}
		resp, err := postTurn(sessionID, msg, privacy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "发送失败: %v\n", err)
			continue
		}
		sessionID, _ = resp["session_id"].(string)
		text, _ := resp["text"].(string)
		fmt.Println(text)
		if cached, _ := resp["cached"].(bool); cached {
			kind, _ := resp["cache_kind"].(string)
			fmt.Printf("  (cached: %s)\n", kind)
		}
	}
}

func postTurn(sessionID, text string, privacy bool) (map[string]any, error) {
	body, _ := json.Marshal(map[string]any{
		"session_id":   sessionID,
		"text":         text,
		"privacy_mode": privacy,
	})
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(apiBase()+"/api/turn", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %v", resp.StatusCode, out["error"])
	}
	return out, nil
}

func runMemories() {
	resp, err := http.Get(apiBase() + "/api/memories")
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出记忆失败: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "解析响应失败: %v\n", err)
		os.Exit(1)
	}
	pretty, _ := json.MarshalIndent(out["memories"], "", "  ")
	fmt.Println(string(pretty))
}
