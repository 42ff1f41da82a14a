package sdk

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// DefaultURL TASKSTREAM_URL 未设置时使用的服务地址
const DefaultURL = "http://127.0.0.1:28080"

var loadEnvOnce sync.Once

// loadEnvFile 尝试从当前目录或上级目录加载 .env 文件，找不到时只使用进程环境变量
func loadEnvFile() {
	loadEnvOnce.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			return
		}

		for _, p := range []string{
			filepath.Join(wd, ".env"),
			filepath.Join(wd, "..", ".env"),
			filepath.Join(wd, "..", "..", ".env"),
		} {
			if _, err := os.Stat(p); err == nil {
				_ = godotenv.Load(p)
				return
			}
		}
	})
}

// DefaultBaseURL 读取 TASKSTREAM_URL（支持 .env），未设置时返回 DefaultURL
func DefaultBaseURL() string {
	loadEnvFile()
	if u := os.Getenv("TASKSTREAM_URL"); u != "" {
		return u
	}
	return DefaultURL
}
