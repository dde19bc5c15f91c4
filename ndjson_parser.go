package streamconv

import "bytes"

// NDJSONParser implements spec.md §4.3: a validating pass-through over
// newline-delimited JSON, carrying a partial-line tail across Push calls.
type NDJSONParser struct {
	partialLine  []byte
	recordCount  uint64
	itemsWritten uint64
}

// NewNDJSONParser builds an empty parser.
func NewNDJSONParser() *NDJSONParser { return &NDJSONParser{} }

// RecordCount returns the number of valid lines emitted so far.
func (p *NDJSONParser) RecordCount() uint64 { return p.recordCount }

// Push logically prepends partialLine to chunk, validates each complete
// line, and copies valid lines verbatim (plus '\n') into the returned
// bytes. Invalid lines are skipped with a debug log, never aborting the
// stream (spec.md §4.3 step 2). Validation for large batches runs across
// a bounded worker pool via validateLinesParallel (spec.md §5); emission
// order always matches input order regardless of worker count.
func (p *NDJSONParser) Push(chunk []byte) []byte {
	var combined []byte
	if len(p.partialLine) > 0 {
		combined = append(append([]byte{}, p.partialLine...), chunk...)
	} else {
		combined = chunk
	}

	var lines [][]byte
	pos := 0
	for {
		idx := bytes.IndexByte(combined[pos:], '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, combined[pos:pos+idx])
		pos += idx + 1
	}
	p.partialLine = append([]byte{}, combined[pos:]...)

	return p.emitLines(lines)
}

func (p *NDJSONParser) emitLines(lines [][]byte) []byte {
	if len(lines) == 0 {
		return nil
	}
	valid := validateLinesParallel(lines)

	var out bytes.Buffer
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if !valid[i] {
			log.WithField("line", string(line)).Debug("ndjson: skipping invalid line")
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
		p.recordCount++
	}
	return out.Bytes()
}

// Finish flushes any remaining buffered partial line.
func (p *NDJSONParser) Finish() []byte {
	if len(p.partialLine) == 0 {
		return nil
	}
	line := p.partialLine
	p.partialLine = nil
	return p.emitLines([][]byte{line})
}

// ToJSONArray is the alternate push form from spec.md §4.3: it wraps the
// validated line sequence into a single JSON array, writing '[' on the
// first call and ']' on the last, separating successive items with a
// comma driven by a monotonic items-written counter.
func (p *NDJSONParser) ToJSONArray(chunk []byte, isFirst, isLast bool) []byte {
	var combined []byte
	if len(p.partialLine) > 0 {
		combined = append(append([]byte{}, p.partialLine...), chunk...)
	} else {
		combined = chunk
	}

	var out bytes.Buffer
	if isFirst {
		out.WriteByte('[')
	}

	pos := 0
	for {
		idx := bytes.IndexByte(combined[pos:], '\n')
		if idx == -1 {
			break
		}
		line := combined[pos : pos+idx]
		pos += idx + 1
		p.writeArrayItem(line, &out)
	}
	p.partialLine = append([]byte{}, combined[pos:]...)

	if isLast {
		if len(p.partialLine) > 0 {
			p.writeArrayItem(p.partialLine, &out)
			p.partialLine = nil
		}
		out.WriteByte(']')
	}
	return out.Bytes()
}

func (p *NDJSONParser) writeArrayItem(line []byte, out *bytes.Buffer) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || !QuickValidate(trimmed) {
		return
	}
	if _, err := ParseAndValidate(trimmed); err != nil {
		return
	}
	if p.itemsWritten > 0 {
		out.WriteByte(',')
	}
	out.Write(trimmed)
	p.itemsWritten++
	p.recordCount++
}
