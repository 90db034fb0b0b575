package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"math"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"varexplorer/domain/variant"
)

//go:embed templates/*.html static/* content/*.md
var embeddedFiles embed.FS

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"percent": func(fraction float64) int {
			return int(math.Round(math.Max(0, math.Min(1, fraction)) * 100))
		},
		"popLabel": func(p variant.Population) string {
			return p.Label()
		},
	}
}

// renderIntro converts the embedded markdown introduction to HTML
func renderIntro() (template.HTML, error) {
	md, err := embeddedFiles.ReadFile("content/intro.md")
	if err != nil {
		return "", err
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(markdown.ToHTML(md, p, renderer)), nil
}

// renderTemplate executes a template with the given data
func (s *Server) renderTemplate(c *gin.Context, status int, templateName string, data interface{}) {
	// First render to a buffer to catch any errors before writing to response
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("Template error for %s: %v", templateName, err)
		log.Printf("Template data type: %T", data)
		c.AbortWithStatusJSON(500, gin.H{"error": "Template rendering failed", "details": err.Error()})
		return
	}

	// Check if the rendered content looks complete
	if !strings.Contains(buf.String(), "</html>") {
		log.Printf("WARNING: Rendered template %s appears truncated - missing </html> tag", templateName)
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(status)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		log.Printf("Error writing template response: %v", err)
	}
}

// renderError renders the error page
func (s *Server) renderError(c *gin.Context, status int, message string) {
	s.renderTemplate(c, status, "error.html", gin.H{
		"Title":   fmt.Sprintf("Error %d", status),
		"Message": message,
	})
}
