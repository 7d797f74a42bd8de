package util

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// LoadDict 加载字典文件, 每行一个字符, 保留空行以外的行序
func LoadDict(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开字典文件 %s: %w", path, err)
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取字典文件时出错: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("字典文件为空: %s", path)
	}
	return lines, nil
}

// FileMD5 计算文件 md5
func FileMD5(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("无法打开文件 %s: %w", path, err)
	}
	defer file.Close()
	h := md5.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("读取文件 %s 失败: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Clamp 将 v 限制在 [lo, hi], hi < lo 时返回 lo
func Clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
