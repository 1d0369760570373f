package publisher

import (
	"fmt"
	"html"
	"strings"

	"github.com/jonesrussell/dealwatch/internal/domain"
)

// BuildCaption renders the HTML caption for an announcement's cover image:
// title, developers, short description, then the struck-through base price
// next to the discounted one.
func BuildCaption(rec *domain.CatalogRecord, title, description string, developers []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(title))

	if len(developers) > 0 {
		escaped := make([]string, 0, len(developers))
		for _, dev := range developers {
			escaped = append(escaped, html.EscapeString(dev))
		}
		fmt.Fprintf(&b, "<i>%s</i>\n", strings.Join(escaped, ", "))
	}

	if description != "" {
		fmt.Fprintf(&b, "\n%s\n", html.EscapeString(description))
	}

	fmt.Fprintf(&b, "\n<s>%.2f</s> -%d%% → %.2f",
		rec.InitialPrice, rec.DiscountPercent, rec.FinalPrice())

	return b.String()
}
