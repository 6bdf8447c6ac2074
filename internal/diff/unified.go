package diff

import (
	"fmt"
	"strings"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// maxLCSCells bounds the LCS table; beyond it the differing middle of the
// two files is reported as one replaced block.
const maxLCSCells = 16 << 20

type opKind byte

const (
	opEqual  opKind = ' '
	opDelete opKind = '-'
	opInsert opKind = '+'
)

type lineOp struct {
	kind opKind
	text string
	// 0-based positions in the old and new line slices before this op.
	oldIdx, newIdx int
}

// Unified returns a unified diff of oldText against newText with the given
// number of context lines, or "" when the texts are equal once line endings
// are normalised.
func Unified(oldName, newName, oldText, newText string, context int) string {
	if context < 0 {
		context = DefaultContext
	}
	oldNorm := normalizeLineEndings(oldText)
	newNorm := normalizeLineEndings(newText)
	if oldNorm == newNorm {
		return ""
	}

	ops := diffLines(splitLines(oldNorm), splitLines(newNorm))
	hunks := groupHunks(ops, context)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "--- %s\n", oldName)
	_, _ = fmt.Fprintf(&b, "+++ %s\n", newName)
	for _, h := range hunks {
		writeHunk(&b, ops[h.start:h.end])
	}
	return b.String()
}

// diffLines computes an edit script from a to b using the classic LCS table,
// after trimming the common prefix and suffix.
func diffLines(a, b []string) []lineOp {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for len(a)-1-suffix >= prefix && len(b)-1-suffix >= prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	ops := make([]lineOp, 0, len(a)+len(b))
	for i := 0; i < prefix; i++ {
		ops = append(ops, lineOp{kind: opEqual, text: a[i], oldIdx: i, newIdx: i})
	}

	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]
	ops = append(ops, lcsOps(midA, midB, prefix, prefix)...)

	for i := 0; i < suffix; i++ {
		oi := len(a) - suffix + i
		ni := len(b) - suffix + i
		ops = append(ops, lineOp{kind: opEqual, text: a[oi], oldIdx: oi, newIdx: ni})
	}
	return ops
}

func lcsOps(a, b []string, offA, offB int) []lineOp {
	n, m := len(a), len(b)
	var ops []lineOp
	if n == 0 || m == 0 || (n+1)*(m+1) > maxLCSCells {
		for i := 0; i < n; i++ {
			ops = append(ops, lineOp{kind: opDelete, text: a[i], oldIdx: offA + i, newIdx: offB})
		}
		for j := 0; j < m; j++ {
			ops = append(ops, lineOp{kind: opInsert, text: b[j], oldIdx: offA + n, newIdx: offB + j})
		}
		return ops
	}

	// table[i][j] = LCS length of a[i:] and b[j:]
	table := make([][]int32, n+1)
	for i := range table {
		table[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else if table[i+1][j] >= table[i][j+1] {
				table[i][j] = table[i+1][j]
			} else {
				table[i][j] = table[i][j+1]
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, lineOp{kind: opEqual, text: a[i], oldIdx: offA + i, newIdx: offB + j})
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			ops = append(ops, lineOp{kind: opDelete, text: a[i], oldIdx: offA + i, newIdx: offB + j})
			i++
		default:
			ops = append(ops, lineOp{kind: opInsert, text: b[j], oldIdx: offA + i, newIdx: offB + j})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, lineOp{kind: opDelete, text: a[i], oldIdx: offA + i, newIdx: offB + m})
	}
	for ; j < m; j++ {
		ops = append(ops, lineOp{kind: opInsert, text: b[j], oldIdx: offA + n, newIdx: offB + j})
	}
	return ops
}

type hunkRange struct {
	start, end int // indices into ops, end exclusive
}

// groupHunks merges changes separated by at most 2*context equal lines.
func groupHunks(ops []lineOp, context int) []hunkRange {
	var hunks []hunkRange
	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].kind == opEqual {
			i++
		}
		if i >= len(ops) {
			break
		}
		start := maxInt(0, i-context)
		end := i
		for end < len(ops) {
			for end < len(ops) && ops[end].kind != opEqual {
				end++
			}
			run := 0
			for end+run < len(ops) && ops[end+run].kind == opEqual {
				run++
			}
			if end+run >= len(ops) || run > 2*context {
				end = minInt(len(ops), end+minInt(run, context))
				break
			}
			end += run
		}
		hunks = append(hunks, hunkRange{start: start, end: end})
		i = end
	}
	return hunks
}

func writeHunk(b *strings.Builder, ops []lineOp) {
	oldStart, newStart := ops[0].oldIdx, ops[0].newIdx
	oldLen, newLen := 0, 0
	for _, op := range ops {
		switch op.kind {
		case opEqual:
			oldLen++
			newLen++
		case opDelete:
			oldLen++
		case opInsert:
			newLen++
		}
	}
	_, _ = fmt.Fprintf(b, "@@ -%s +%s @@\n", formatRange(oldStart, oldLen), formatRange(newStart, newLen))
	for _, op := range ops {
		b.WriteByte(byte(op.kind))
		b.WriteString(op.text)
		b.WriteByte('\n')
	}
}

// formatRange renders a hunk range the way diff -u does: a single line is
// shown without a length and an empty range points at the line before it.
func formatRange(start, length int) string {
	begin := start + 1
	if length == 1 {
		return fmt.Sprintf("%d", begin)
	}
	if length == 0 {
		begin--
	}
	return fmt.Sprintf("%d,%d", begin, length)
}

func normalizeLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func maxInt(a, b int) int {
	if a >= b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a <= b {
		return a
	}
	return b
}
