package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// EchoLines 命令回显的首尾若干行
type EchoLines struct {
	Head []string `json:"head"`
	Tail []string `json:"tail"`
	// Total 回显总行数
	Total int `json:"total"`
}

// SplitEcho 提取回显首尾各 maxLines 行；总行数不超过 maxLines 时 Tail 为空
func SplitEcho(output string, maxLines int) EchoLines {
	if maxLines <= 0 {
		maxLines = 5
	}
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return EchoLines{}
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return EchoLines{Head: lines, Total: len(lines)}
	}
	head := append([]string(nil), lines[:maxLines]...)
	start := len(lines) - maxLines
	if start < maxLines {
		start = maxLines
	}
	tail := append([]string(nil), lines[start:]...)
	return EchoLines{Head: head, Tail: tail, Total: len(lines)}
}

// String 形如 "head-lines: [a ⟩ b], tail-lines: [y ⟩ z]"
func (e EchoLines) String() string {
	var parts []string
	if len(e.Head) > 0 {
		parts = append(parts, "head-lines: ["+strings.Join(e.Head, " ⟩ ")+"]")
	}
	if len(e.Tail) > 0 {
		parts = append(parts, "tail-lines: ["+strings.Join(e.Tail, " ⟩ ")+"]")
	}
	return strings.Join(parts, ", ")
}

// DebugCommandOutput debug 级别下记录命令回显摘要
func DebugCommandOutput(host, command, output string, maxLines int) {
	if !GetLogger().IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	echo := SplitEcho(output, maxLines)
	if echo.Total == 0 {
		return
	}
	WithFields(logrus.Fields{"host": host, "command": command, "lines": echo.Total}).
		Debugf("Command echo: %s", echo)
}
