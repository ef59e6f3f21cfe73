package planner

import "strings"

const (
	toolTagOpen  = "<tool_call>"
	toolTagClose = "</tool_call>"
)

// tagFilter strips textual <tool_call>...</tool_call> spans from a
// streamed token sequence, applied to the display content stream in
// source rather than after accumulation so on_llm_chunk callbacks only
// ever see filtered text, per §4.3 step b. It tolerates a tag boundary
// landing on either side of a chunk split by holding back the longest
// unresolved suffix as pending state between Feed calls.
type tagFilter struct {
	pending string
	inTag   bool
}

// Feed filters one streamed chunk and returns the text safe to emit now.
// Any unresolved partial tag text is retained internally and folded into
// the next call.
func (f *tagFilter) Feed(chunk string) string {
	buf := f.pending + chunk
	f.pending = ""

	var out strings.Builder
	for {
		if f.inTag {
			idx := strings.Index(buf, toolTagClose)
			if idx == -1 {
				f.pending = holdBackPartialSuffix(buf, toolTagClose)
				return out.String()
			}
			buf = buf[idx+len(toolTagClose):]
			f.inTag = false
			continue
		}

		idx := strings.Index(buf, toolTagOpen)
		if idx == -1 {
			keep := holdBackPartialSuffix(buf, toolTagOpen)
			out.WriteString(buf[:len(buf)-len(keep)])
			f.pending = keep
			return out.String()
		}
		out.WriteString(buf[:idx])
		buf = buf[idx+len(toolTagOpen):]
		f.inTag = true
	}
}

// Flush returns any text still held back as pending, for use once the
// stream has ended and no more chunks will arrive to resolve a tag.
func (f *tagFilter) Flush() string {
	if f.inTag {
		// An unterminated tag at stream end is dropped, not emitted — the
		// model failed to close it and the pending text was never shown.
		f.pending = ""
		return ""
	}
	out := f.pending
	f.pending = ""
	return out
}

// holdBackPartialSuffix returns the longest suffix of s that is also a
// proper prefix of tag, i.e. the tail that might still grow into tag once
// more chunk data arrives.
func holdBackPartialSuffix(s, tag string) string {
	max := len(tag) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return s[len(s)-n:]
		}
	}
	return ""
}
