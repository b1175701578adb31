package notify

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// RestockMessage is one email to one waiting customer.
type RestockMessage struct {
	Email        string
	ProductTitle string
	VariantTitle string
	ProductID    string
}

type Templates struct {
	engine   *html.Engine
	storeURL string
}

func NewTemplates(storeURL string) (*Templates, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, err
	}
	return &Templates{engine: engine, storeURL: strings.TrimRight(storeURL, "/")}, nil
}

func (t *Templates) ProductURL(productID string) string {
	return t.storeURL + "/products/" + productID
}

// Restock renders subject and HTML body of a back-in-stock email.
func (t *Templates) Restock(msg RestockMessage) (string, string, error) {
	var buf bytes.Buffer
	err := t.engine.Render(&buf, "restock", fiber.Map{
		"ProductTitle": msg.ProductTitle,
		"VariantTitle": msg.VariantTitle,
		"ProductURL":   t.ProductURL(msg.ProductID),
	})
	if err != nil {
		return "", "", err
	}
	subject := msg.ProductTitle + " is back in stock"
	return subject, buf.String(), nil
}
