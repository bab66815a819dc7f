// Package linebuf holds a text document as a sequence of lines that can be
// deleted by index and undone in groups.
package linebuf

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// ErrLineRange is returned when a line index is outside the buffer.
var ErrLineRange = errors.New("linebuf: line out of range")

type line struct {
	text []byte
	crlf bool // Line was terminated by "\r\n"
}

// Buffer is an editable list of lines backed by a gap buffer, so deleting a
// run of lines while walking forward costs O(1) per line.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	lines    []line
	gapStart int // Physical index of the first slot in the gap
	gapEnd   int // Physical index of the first slot after the gap

	finalNewline bool // Last line was terminated

	editing bool
	pending []line   // Snapshot taken by BeginEdit
	undo    [][]line // Completed edit groups, most recent last
}

// Parse splits data into lines. Lines end at "\n"; a preceding "\r" is
// stripped and restored by WriteTo. The buffer keeps references into data.
func Parse(data []byte) *Buffer {
	b := &Buffer{}
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			b.lines = append(b.lines, line{text: data[:len(data):len(data)]})
			break
		}
		text := data[:i:i]
		crlf := false
		if n := len(text); n > 0 && text[n-1] == '\r' {
			text = text[: n-1 : n-1]
			crlf = true
		}
		b.lines = append(b.lines, line{text: text, crlf: crlf})
		data = data[i+1:]
		b.finalNewline = len(data) == 0
	}
	b.gapStart = len(b.lines)
	b.gapEnd = len(b.lines)
	return b
}

// Read reads all of r and parses it.
func Read(r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "linebuf: read")
	}
	return Parse(data), nil
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	return len(b.lines) - (b.gapEnd - b.gapStart)
}

// physical maps a line index to its slot in b.lines.
func (b *Buffer) physical(i int) int {
	if i < b.gapStart {
		return i
	}
	return i + b.gapEnd - b.gapStart
}

// Line returns the text of line i without its terminator.
func (b *Buffer) Line(i int) ([]byte, bool) {
	if i < 0 || i >= b.LineCount() {
		return nil, false
	}
	return b.lines[b.physical(i)].text, true
}

// DeleteLine removes line i. Later lines move up by one.
func (b *Buffer) DeleteLine(i int) error {
	if i < 0 || i >= b.LineCount() {
		return errors.Wrapf(ErrLineRange, "delete line %d of %d", i, b.LineCount())
	}
	b.moveGap(i)
	b.lines[b.gapEnd] = line{}
	b.gapEnd++
	return nil
}

// moveGap places the gap in front of line i.
func (b *Buffer) moveGap(i int) {
	switch {
	case i < b.gapStart:
		n := b.gapStart - i
		copy(b.lines[b.gapEnd-n:b.gapEnd], b.lines[i:b.gapStart])
		b.gapStart -= n
		b.gapEnd -= n
	case i > b.gapStart:
		n := i - b.gapStart
		copy(b.lines[b.gapStart:b.gapStart+n], b.lines[b.gapEnd:b.gapEnd+n])
		b.gapStart += n
		b.gapEnd += n
	}
}

// snapshot returns a copy of the current lines without the gap.
func (b *Buffer) snapshot() []line {
	out := make([]line, 0, b.LineCount())
	out = append(out, b.lines[:b.gapStart]...)
	return append(out, b.lines[b.gapEnd:]...)
}

func (b *Buffer) restore(lines []line) {
	b.lines = lines
	b.gapStart = len(lines)
	b.gapEnd = len(lines)
}

// BeginEdit starts an edit group. All changes until EndEdit are undone
// together. Nested calls are ignored.
func (b *Buffer) BeginEdit() {
	if b.editing {
		return
	}
	b.editing = true
	b.pending = b.snapshot()
}

// EndEdit closes the current edit group. A group that changed nothing is
// dropped.
func (b *Buffer) EndEdit() {
	if !b.editing {
		return
	}
	b.editing = false
	if len(b.pending) != b.LineCount() {
		b.undo = append(b.undo, b.pending)
	}
	b.pending = nil
}

// CanUndo reports whether there is a completed edit group to undo.
func (b *Buffer) CanUndo() bool {
	return len(b.undo) > 0
}

// Undo restores the buffer to its state before the most recent edit group.
// It returns false if there is nothing to undo.
func (b *Buffer) Undo() bool {
	if b.editing || len(b.undo) == 0 {
		return false
	}
	n := len(b.undo) - 1
	b.restore(b.undo[n])
	b.undo = b.undo[:n]
	return true
}

// Lines returns the text of every line.
func (b *Buffer) Lines() [][]byte {
	out := make([][]byte, 0, b.LineCount())
	for i := range b.LineCount() {
		text, _ := b.Line(i)
		out = append(out, text)
	}
	return out
}

// WriteTo writes the buffer with each line's original terminator. The output
// ends with a newline only if the parsed input did, whichever line is last
// after deletions.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	count := b.LineCount()
	for i := range count {
		l := b.lines[b.physical(i)]
		written, _ := bw.Write(l.text)
		n += int64(written)
		if i == count-1 && !b.finalNewline {
			break
		}
		if l.crlf {
			bw.WriteByte('\r')
			n++
		}
		bw.WriteByte('\n')
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(err, "linebuf: write")
	}
	return n, nil
}

// Bytes returns the buffer contents as written by WriteTo.
func (b *Buffer) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = b.WriteTo(&buf)
	return buf.Bytes()
}
