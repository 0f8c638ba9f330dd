package email

import (
	"path/filepath"
	"strings"
)

const recipientToken = "[Recipient Name]"

// Personalize substitutes the recipient name into a plain-text body.
func Personalize(body, name string) string {
	return strings.ReplaceAll(body, recipientToken, name)
}

// ToHTML is a minimal plain-text to HTML conversion: newlines become line
// breaks and bullet characters become the bullet entity.
func ToHTML(text string) string {
	text = strings.ReplaceAll(text, "\n", "<br>")
	return strings.ReplaceAll(text, "•", "&bull;")
}

// signatureName is the inline part name, and therefore its content id.
func signatureName(path string) string {
	return "signature" + strings.ToLower(filepath.Ext(path))
}

func signatureTag(cid string) string {
	return "<br><br><img src='cid:" + cid + "' style='max-width:300px;'>"
}
