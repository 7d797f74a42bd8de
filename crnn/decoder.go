package crnn

import (
	"math"
	"strings"
)

const blankIndex = 0

// DefaultAlphabet EasyOCR 英文字符集, 下标 k 对应类别 k+1
var DefaultAlphabet = strings.Split(
	"0123456789"+
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ €"+
		"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz", "")

// Result 解码结果
type Result struct {
	Text       string
	Confidence float64
}

// Decoder 贪心 CTC 解码器
type Decoder struct {
	Alphabet []string
}

// NewDecoder alphabet 为空时使用 DefaultAlphabet
func NewDecoder(alphabet []string) *Decoder {
	if len(alphabet) == 0 {
		alphabet = DefaultAlphabet
	}
	return &Decoder{Alphabet: alphabet}
}

// Decode probs 为 steps x classes 的行优先概率矩阵.
// 每步取最大类别 (并列取下标最小), 合并连续重复, 去除空白 (类别 0).
// 置信度为输出字符对应最大概率的平均值, 无输出时为 0.
func (d *Decoder) Decode(probs []float32, steps, classes int) Result {
	if classes <= 0 || steps <= 0 {
		return Result{}
	}
	steps = min(steps, len(probs)/classes)

	var sb strings.Builder
	var sum float64
	emitted := 0
	last := -1
	for t := 0; t < steps; t++ {
		row := probs[t*classes : (t+1)*classes]
		best, bestVal := 0, row[0]
		for k := 1; k < classes; k++ {
			if row[k] > bestVal {
				best, bestVal = k, row[k]
			}
		}

		if best != blankIndex && best != last && best-1 < len(d.Alphabet) {
			sb.WriteString(d.Alphabet[best-1])
			sum += float64(bestVal)
			emitted++
		}
		last = best
	}

	if emitted == 0 {
		return Result{}
	}
	return Result{Text: sb.String(), Confidence: sum / float64(emitted)}
}

// DecodeMatrix 按行给出的概率矩阵
func (d *Decoder) DecodeMatrix(rows [][]float32) Result {
	if len(rows) == 0 {
		return Result{}
	}
	classes := len(rows[0])
	flat := make([]float32, 0, len(rows)*classes)
	for _, r := range rows {
		if len(r) != classes {
			break
		}
		flat = append(flat, r...)
	}
	return d.Decode(flat, len(flat)/max(classes, 1), classes)
}

// Softmax 原地计算, 先减去最大值
func Softmax(row []float32) {
	if len(row) == 0 {
		return
	}
	m := row[0]
	for _, v := range row[1:] {
		m = max(m, v)
	}
	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v - m))
		row[i] = float32(e)
		sum += e
	}
	for i := range row {
		row[i] = float32(float64(row[i]) / sum)
	}
}

// SoftmaxRows 对 steps x classes 矩阵逐行 Softmax
func SoftmaxRows(probs []float32, classes int) {
	if classes <= 0 {
		return
	}
	for off := 0; off+classes <= len(probs); off += classes {
		Softmax(probs[off : off+classes])
	}
}
