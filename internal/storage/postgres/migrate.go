package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/azhengyongqin/taskstream/internal/logger"
)

// MigrationFiles 返回目录下按文件名排序的 .sql 文件
func MigrationFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ApplyMigrationsFromDir 按文件名顺序执行 SQL 迁移。
// 迁移脚本需要自行保证幂等（CREATE ... IF NOT EXISTS）。
func ApplyMigrationsFromDir(ctx context.Context, db *sql.DB, dir string) error {
	files, err := MigrationFiles(dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", filepath.Base(f), err)
		}
		logger.Debug().Str("file", filepath.Base(f)).Msg("迁移已执行")
	}
	return nil
}
