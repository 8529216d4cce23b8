package util

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// legacyEncodings 设备回显常见的非 UTF-8 编码，按尝试顺序排列
// ISO8859_1 可解码任意字节序列，必须放在最后
var legacyEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"gb18030", simplifiedchinese.GB18030},
	{"gbk", simplifiedchinese.GBK},
	{"big5", traditionalchinese.Big5},
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// DecodeOutput 将设备回显转为 UTF-8，返回文本与识别出的编码名
// 已是合法 UTF-8 时原样返回，编码名为 "utf-8"
func DecodeOutput(b []byte) (string, string) {
	if utf8.Valid(b) {
		return string(b), "utf-8"
	}
	for _, le := range legacyEncodings {
		if s, ok := tryDecode(le.enc, b); ok {
			return s, le.name
		}
	}
	// 无法识别：替换非法字节，保证下游解析器拿到合法 UTF-8
	return string(bytes.ToValidUTF8(b, []byte("�"))), "invalid"
}

// EnsureUTF8 字符串版本
func EnsureUTF8(s string) string {
	out, _ := DecodeOutput([]byte(s))
	return out
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(decoded) || bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}
