package docx

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	// Inline drawing at fixed extent, anchored in the text run that held the
	// tag. The image is not centered within its container.
	drawingXML = `<w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"><wp:extent cx="%[1]d" cy="%[1]d"/><wp:effectExtent l="0" t="0" r="0" b="0"/><wp:docPr id="%[2]d" name="%[3]s"/><wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr><a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:nvPicPr><pic:cNvPr id="%[2]d" name="%[3]s"/><pic:cNvPicPr/></pic:nvPicPr><pic:blipFill><a:blip r:embed="%[4]s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill><pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[1]d" cy="%[1]d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`
)

// embedImages replaces every {%tag} with an inline drawing, reading the
// bound file at render time and registering it as a new media part.
func (r *Renderer) embedImages(body string, images map[string]string, parts *partList) (string, error) {
	seq := 0
	for tag, path := range images {
		placeholder := "{%" + tag + "}"
		if !strings.Contains(body, placeholder) {
			r.logger.Warn("Template has no image tag", zap.String("tag", tag))
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return "", wrapTemplateError(err, "image tag %s references unreadable file %s", tag, path)
		}

		seq++
		mediaName := fmt.Sprintf("word/media/%s_%d.png", sanitizeTag(tag), seq)
		parts.set(mediaName, content)

		relID, err := addImageRelationship(parts, strings.TrimPrefix(mediaName, "word/"))
		if err != nil {
			return "", err
		}
		ensurePNGContentType(parts)

		drawing := fmt.Sprintf(drawingXML, ImageWidthPx*emuPerPixel, 1000+seq, sanitizeTag(tag), relID)
		run := `</w:t></w:r><w:r>` + drawing + `</w:r><w:r><w:t xml:space="preserve">`
		body = strings.ReplaceAll(body, placeholder, run)

		r.logger.Debug("Image embedded",
			zap.String("tag", tag),
			zap.String("media", mediaName),
			zap.Int("size", len(content)))
	}
	return body, nil
}

func addImageRelationship(parts *partList, target string) (string, error) {
	rels, ok := parts.get(documentRelsPart)
	if !ok {
		return "", wrapTemplateError(ErrTemplateCorrupted, "missing %s", documentRelsPart)
	}
	content := string(rels)
	relID := fmt.Sprintf("rId%d", nextRelationshipID(content))
	entry := fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"/>`, relID, imageRelType, target)
	closing := "</Relationships>"
	if !strings.Contains(content, closing) {
		return "", wrapTemplateError(ErrTemplateCorrupted, "malformed %s", documentRelsPart)
	}
	parts.set(documentRelsPart, []byte(strings.Replace(content, closing, entry+closing, 1)))
	return relID, nil
}

func ensurePNGContentType(parts *partList) {
	types, ok := parts.get(contentTypesPart)
	if !ok {
		return
	}
	content := string(types)
	if strings.Contains(content, `Extension="png"`) {
		return
	}
	entry := `<Default Extension="png" ContentType="image/png"/>`
	parts.set(contentTypesPart, []byte(strings.Replace(content, "</Types>", entry+"</Types>", 1)))
}

func sanitizeTag(tag string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, tag)
}
