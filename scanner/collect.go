package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions 目录扫描时收集的图像扩展名
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

// Collect 合并显式文件与目录扫描结果. 目录只扫描一层, 扩展名不区分大小写.
// 同一路径只出现一次, 显式文件在前, 目录内按文件名排序.
func Collect(files, dirs, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, fmt.Errorf("无法访问文件 %s: %w", f, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s 是目录, 请使用目录扫描参数", f)
		}
		add(f)
	}

	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			return nil, fmt.Errorf("无法读取目录 %s: %w", d, err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || !matchExt(e.Name(), exts) {
				continue
			}
			add(filepath.Join(d, e.Name()))
		}
	}
	return out, nil
}

func matchExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
