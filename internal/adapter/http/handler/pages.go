package handler

import (
	"embed"
	"html/template"
	"net/http"

	"sendit-ledger/internal/adapter/http/dto"
	"sendit-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// IndexTemplate parses the web form page.
func IndexTemplate() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// Index handles GET /.
func Index(c *gin.Context) {
	renderIndex(c, http.StatusOK, "", "")
}

// wantsHTML reports whether a browser form post expects a page back.
func wantsHTML(c *gin.Context) bool {
	if c.Request.Method != http.MethodPost || c.ContentType() != gin.MIMEPOSTForm {
		return false
	}
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

func renderIndex(c *gin.Context, status int, message, category string) {
	c.HTML(status, "index.html", gin.H{
		"Message":  message,
		"Category": category,
	})
}

func flashFor(data interface{}) string {
	switch v := data.(type) {
	case dto.BalanceResponse:
		return v.Message
	case dto.TransferResponse:
		return v.Message
	}
	return ""
}

func statusOf(appErr *apperror.AppError) int {
	if appErr == nil {
		return http.StatusInternalServerError
	}
	return appErr.HTTPStatus
}
