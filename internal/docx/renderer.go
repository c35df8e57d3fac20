// Package docx fills a DOCX template with report data. Placeholders use
// single-brace delimiters ({tag}, {#loop}...{/loop}, {%image}) to match the
// prepared template text. Word splits placeholder text across runs while
// editing, so tags are re-merged before substitution.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	documentPart     = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"

	// A placeholder longer than this is assumed to be a stray brace, not a tag.
	maxTagLength = 120

	// emuPerPixel converts CSS pixels at 96 DPI to English Metric Units.
	emuPerPixel = 9525
)

// Data carries everything one render binds into the template.
type Data struct {
	// Fields are scalar tags, substituted by exact name match.
	Fields map[string]string
	// Loops bind a repeating section to one row map per item.
	Loops map[string][]map[string]string
	// Images bind an image tag to a readable image file path, inlined at
	// ImageWidthPx square.
	Images map[string]string
}

// ImageWidthPx is the fixed display size of embedded images.
const ImageWidthPx = 150

// Renderer fills DOCX templates. It holds no per-render state and is safe
// for concurrent use.
type Renderer struct {
	logger *zap.Logger
}

// NewRenderer creates a new template renderer.
func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// LoadTemplate reads the template container from disk.
func (r *Renderer) LoadTemplate(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrapTemplateError(ErrTemplateNotFound, "%s", path)
		}
		return nil, wrapTemplateError(err, "failed to read template %s", path)
	}
	return content, nil
}

// Render substitutes data into the template and returns the filled
// container. Every tag left in the template must resolve; an unresolved tag
// is a TemplateError so operators can tell bad input from a bad
// environment.
func (r *Renderer) Render(template []byte, data *Data) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, wrapTemplateError(ErrTemplateCorrupted, "not a readable zip container")
	}

	parts, err := readParts(zr)
	if err != nil {
		return nil, wrapTemplateError(err, "failed to extract template parts")
	}

	doc, ok := parts.get(documentPart)
	if !ok {
		return nil, wrapTemplateError(ErrTemplateCorrupted, "missing %s", documentPart)
	}
	body := mergeSplitTags(string(doc))

	body, err = r.expandLoops(body, data.Loops)
	if err != nil {
		return nil, err
	}

	body, err = r.embedImages(body, data.Images, parts)
	if err != nil {
		return nil, err
	}

	for tag, value := range data.Fields {
		body = strings.ReplaceAll(body, "{"+tag+"}", encodeValue(value))
	}

	if tag := firstUnresolvedTag(body); tag != "" {
		return nil, templateErrorf("tag %s is not bound in the data record", tag)
	}

	parts.set(documentPart, []byte(body))

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, part := range parts.entries {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild container: %w", err)
		}
		if _, err := w.Write(part.data); err != nil {
			return nil, fmt.Errorf("failed to rebuild container: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize container: %w", err)
	}

	r.logger.Debug("Template rendered",
		zap.Int("template_size", len(template)),
		zap.Int("output_size", out.Len()))
	return out.Bytes(), nil
}

// expandLoops repeats the section between {#name} and {/name} once per row.
// A section whose markers sit inside a table row repeats whole rows; any
// other section repeats the paragraphs between the marker paragraphs.
func (r *Renderer) expandLoops(body string, loops map[string][]map[string]string) (string, error) {
	for name, rows := range loops {
		open := "{#" + name + "}"
		closing := "{/" + name + "}"

		openIdx := strings.Index(body, open)
		closeIdx := strings.Index(body, closing)
		if openIdx < 0 && closeIdx < 0 {
			r.logger.Warn("Template has no section for loop", zap.String("loop", name))
			continue
		}
		if openIdx < 0 || closeIdx < 0 || closeIdx < openIdx {
			return "", templateErrorf("loop %s is not properly opened and closed", name)
		}

		var unitStart, unitEnd int
		var unit string
		if rowStart := lastIndexElement(body[:openIdx], "w:tr"); rowStart >= 0 && !strings.Contains(body[rowStart:openIdx], "</w:tr>") {
			rowEnd := strings.Index(body[closeIdx:], "</w:tr>")
			if rowEnd < 0 {
				return "", templateErrorf("loop %s closes outside its table row", name)
			}
			unitStart = rowStart
			unitEnd = closeIdx + rowEnd + len("</w:tr>")
			unit = body[unitStart:unitEnd]
			unit = strings.ReplaceAll(unit, open, "")
			unit = strings.ReplaceAll(unit, closing, "")
		} else {
			// Paragraph loop: the marker paragraphs themselves are dropped
			// and the paragraphs between them repeat.
			openParaStart := lastIndexElement(body[:openIdx], "w:p")
			openParaEnd := strings.Index(body[openIdx:], "</w:p>")
			closeParaStart := lastIndexElement(body[:closeIdx], "w:p")
			closeParaEnd := strings.Index(body[closeIdx:], "</w:p>")
			if openParaStart < 0 || openParaEnd < 0 || closeParaStart < 0 || closeParaEnd < 0 {
				return "", templateErrorf("loop %s markers are not inside paragraphs", name)
			}
			unitStart = openParaStart
			unitEnd = closeIdx + closeParaEnd + len("</w:p>")
			unit = body[openIdx+openParaEnd+len("</w:p>") : closeParaStart]
		}

		var expanded strings.Builder
		for _, row := range rows {
			item := unit
			for tag, value := range row {
				item = strings.ReplaceAll(item, "{"+tag+"}", encodeValue(value))
			}
			expanded.WriteString(item)
		}
		body = body[:unitStart] + expanded.String() + body[unitEnd:]
	}
	return body, nil
}

// firstUnresolvedTag reports the first remaining placeholder, or "".
var tagPattern = regexp.MustCompile(`\{[#/%]?[A-Za-z0-9_.]{1,80}\}`)

func firstUnresolvedTag(body string) string {
	return tagPattern.FindString(body)
}

// mergeSplitTags rejoins placeholders that Word split across runs, dropping
// the markup between the braces. Only text inside w:t elements is touched,
// and a brace that does not close within its paragraph is left alone.
func mergeSplitTags(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inText := false
	i := 0
	for i < len(s) {
		if s[i] == '<' {
			end := strings.IndexByte(s[i:], '>')
			if end < 0 {
				out.WriteString(s[i:])
				break
			}
			elem := s[i : i+end+1]
			switch {
			case strings.HasPrefix(elem, "<w:t>") || strings.HasPrefix(elem, "<w:t "):
				inText = true
			case elem == "</w:t>":
				inText = false
			}
			out.WriteString(elem)
			i += end + 1
			continue
		}
		if inText && s[i] == '{' {
			if merged, next, ok := captureTag(s, i); ok {
				out.WriteString(merged)
				i = next
				continue
			}
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

// captureTag collects the text of one placeholder starting at the opening
// brace, skipping any markup until the closing brace. Returns false when
// the brace is not a placeholder.
func captureTag(s string, start int) (string, int, bool) {
	var buf strings.Builder
	i := start
	for i < len(s) {
		if s[i] == '<' {
			end := strings.IndexByte(s[i:], '>')
			if end < 0 {
				return "", 0, false
			}
			elem := s[i : i+end+1]
			if elem == "</w:p>" || strings.HasPrefix(elem, "</w:tbl") || strings.HasPrefix(elem, "</w:tr") {
				return "", 0, false
			}
			i += end + 1
			continue
		}
		buf.WriteByte(s[i])
		if s[i] == '}' {
			return buf.String(), i + 1, true
		}
		if buf.Len() > maxTagLength {
			return "", 0, false
		}
		i++
	}
	return "", 0, false
}

// lastIndexElement finds the last opening element of the given name before
// the end of s, distinguishing w:p from w:pPr and the like.
func lastIndexElement(s, name string) int {
	needle := "<" + name
	limit := len(s)
	for {
		i := strings.LastIndex(s[:limit], needle)
		if i < 0 {
			return -1
		}
		j := i + len(needle)
		if j < len(s) && (s[j] == ' ' || s[j] == '>' || s[j] == '/') {
			return i
		}
		limit = i
	}
}

// encodeValue escapes a value for insertion inside a w:t element and turns
// embedded newlines into visual line breaks. A literal brace is split out of
// its text element so a substituted value can never read as a template tag;
// the rendered text is unchanged.
func encodeValue(v string) string {
	escaped := escapeXML(v)
	if strings.Contains(escaped, "\n") {
		escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
		escaped = strings.ReplaceAll(escaped, "\n", `</w:t><w:br/><w:t xml:space="preserve">`)
	}
	if strings.Contains(escaped, "{") {
		escaped = strings.ReplaceAll(escaped, "{", `{</w:t><w:t xml:space="preserve">`)
	}
	return escaped
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(v string) string {
	return xmlReplacer.Replace(v)
}

// partList keeps the container parts in their original order so the
// rebuilt zip stays close to the source document.
type partList struct {
	entries []part
	index   map[string]int
}

type part struct {
	name string
	data []byte
}

func readParts(zr *zip.Reader) (*partList, error) {
	pl := &partList{index: make(map[string]int)}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}
		pl.index[f.Name] = len(pl.entries)
		pl.entries = append(pl.entries, part{name: f.Name, data: data})
	}
	return pl, nil
}

func (pl *partList) get(name string) ([]byte, bool) {
	i, ok := pl.index[name]
	if !ok {
		return nil, false
	}
	return pl.entries[i].data, true
}

func (pl *partList) set(name string, data []byte) {
	if i, ok := pl.index[name]; ok {
		pl.entries[i].data = data
		return
	}
	pl.index[name] = len(pl.entries)
	pl.entries = append(pl.entries, part{name: name, data: data})
}

// nextRelationshipID returns the first unused rId number in a
// relationships part.
func nextRelationshipID(rels string) int {
	max := 0
	for _, m := range relIDPattern.FindAllStringSubmatch(rels, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

var relIDPattern = regexp.MustCompile(`Id="rId(\d+)"`)
