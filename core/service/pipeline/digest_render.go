package pipeline

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

// Deterministic digest renderer. Given identical inputs and a fixed clock
// it produces byte-identical HTML. All user-controlled strings are
// escaped; the document carries a fixed inline CSS block, no scripts, no
// remote resources.

const digestCSS = `body{margin:0;padding:0;background:#f6f5f3;font-family:Georgia,'Times New Roman',serif;color:#2b2b2b}
.wrap{max-width:680px;margin:0 auto;padding:24px 16px}
.greeting{font-size:17px;line-height:1.5;margin-bottom:20px}
h2{font-size:14px;text-transform:uppercase;letter-spacing:1px;color:#8a6d3b;border-bottom:1px solid #e0d9cc;padding-bottom:6px;margin:28px 0 10px}
ol{margin:0;padding-left:24px}
li{margin:8px 0;line-height:1.45}
a{color:#1a5276;text-decoration:none}
.meta{color:#777;font-size:13px}
.footer{margin-top:32px;padding-top:12px;border-top:1px solid #e0d9cc;color:#777;font-size:13px}
.clear{padding:32px 0;text-align:center;color:#555;font-style:italic}`

// sectionBuckets groups featured items by presentation block, preserving
// input order inside each. Critical and today combine into one block.
func sectionBuckets(items []domain.FeaturedItem) map[domain.Section][]domain.FeaturedItem {
	buckets := make(map[domain.Section][]domain.FeaturedItem)
	for _, item := range items {
		section := item.Section
		if section == domain.SectionCritical {
			section = domain.SectionToday
		}
		if !section.IsFeatured() {
			continue
		}
		buckets[section] = append(buckets[section], item)
	}
	return buckets
}

// renderOrder is the fixed block order after critical/today merge.
var renderOrder = []domain.Section{
	domain.SectionToday,
	domain.SectionComingUp,
	domain.SectionWorthKnowing,
}

// RenderDigest produces the complete deterministic HTML document.
func RenderDigest(pc *domain.PipelineContext) string {
	var sb strings.Builder
	openDocument(&sb, pc.Greeting)

	buckets := sectionBuckets(pc.FeaturedItems)
	empty := true
	for _, section := range renderOrder {
		if len(buckets[section]) > 0 {
			empty = false
			break
		}
	}

	if empty {
		sb.WriteString(inboxClearBlock)
	} else {
		n := 0
		for _, section := range renderOrder {
			items := buckets[section]
			if len(items) == 0 {
				continue
			}
			sb.WriteString("<h2>" + html.EscapeString(section.Heading()) + "</h2>\n<ol>\n")
			for _, item := range items {
				n++
				sb.WriteString(renderItem(&item, n, pc))
			}
			sb.WriteString("</ol>\n")
		}
	}

	renderFooter(&sb, pc.NoiseSummary)
	closeDocument(&sb)
	return sb.String()
}

func openDocument(sb *strings.Builder, greeting string) {
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<style>\n")
	sb.WriteString(digestCSS)
	sb.WriteString("\n</style>\n</head>\n<body>\n<div class=\"wrap\">\n")
	if greeting != "" {
		sb.WriteString("<p class=\"greeting\">" + html.EscapeString(greeting) + "</p>\n")
	}
}

func closeDocument(sb *strings.Builder) {
	sb.WriteString("</div>\n</body>\n</html>\n")
}

// renderItem renders one numbered card line. Item numbers are global
// across sections.
func renderItem(item *domain.FeaturedItem, n int, pc *domain.PipelineContext) string {
	title := item.Title()
	href := BestLink(item.SourceThreadID(), item.SourceEmailID(), title)
	line := fmt.Sprintf(`<li value="%d"><a href="%s">%s</a>`,
		n, html.EscapeString(href), html.EscapeString(title))

	if detail := itemDetail(item, pc); detail != "" {
		line += ` <span class="meta">` + html.EscapeString(detail) + `</span>`
	}
	return line + "</li>\n"
}

// itemDetail renders the variant-specific meta line for entity cards.
func itemDetail(item *domain.FeaturedItem, pc *domain.PipelineContext) string {
	e := item.Entity
	if e == nil {
		return ""
	}
	loc := pc.UserTimezone
	switch e.Type {
	case domain.EntityFlight:
		parts := make([]string, 0, 3)
		if !e.Flight.Departure.IsZero() && !e.Flight.Arrival.IsZero() {
			parts = append(parts, e.Flight.Departure.String()+" → "+e.Flight.Arrival.String())
		}
		if e.Flight.DepartureTime != nil {
			parts = append(parts, formatLocal(*e.Flight.DepartureTime, loc))
		}
		if e.Flight.ConfirmationCode != "" {
			parts = append(parts, "conf "+e.Flight.ConfirmationCode)
		}
		return strings.Join(parts, " · ")
	case domain.EntityEvent:
		parts := make([]string, 0, 2)
		if e.Event.EventTime != nil {
			parts = append(parts, formatLocal(*e.Event.EventTime, loc))
		}
		if s := e.Event.Location.String(); s != "" {
			parts = append(parts, s)
		}
		return strings.Join(parts, " · ")
	case domain.EntityDeadline:
		parts := make([]string, 0, 2)
		if e.Deadline.Amount != "" {
			parts = append(parts, e.Deadline.Amount)
		}
		if e.Deadline.DueDate != nil {
			parts = append(parts, "due "+formatLocal(*e.Deadline.DueDate, loc))
		}
		return strings.Join(parts, " · ")
	case domain.EntityPromo:
		if e.Promo.PromoCode != "" {
			return "code " + e.Promo.PromoCode
		}
	case domain.EntityNotification:
		parts := make([]string, 0, 2)
		if e.Notification.TrackingNumber != "" {
			parts = append(parts, e.Notification.Carrier+" "+e.Notification.TrackingNumber)
		}
		if e.Notification.DeliveryDate != nil {
			parts = append(parts, "arriving "+formatLocalDay(*e.Notification.DeliveryDate, loc))
		}
		return strings.Join(parts, " · ")
	}
	return ""
}

func formatLocal(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon Jan 2, 3:04pm")
}

func formatLocalDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon Jan 2")
}

const inboxClearBlock = `<div class="clear">Your inbox is clear. Nothing needs your attention right now.</div>` + "\n"

// renderFooter writes the compact noise summary line: "3 newsletters ·
// 2 promotions", each count linking to the per-type label in the mail
// client. Deterministic: types render in fixed order.
func renderFooter(sb *strings.Builder, noise map[string]int) {
	if len(noise) == 0 {
		return
	}
	order := []string{
		string(domain.TypeNewsletter), string(domain.TypePromotion),
		string(domain.TypeMarketing), string(domain.TypeUpdate),
		string(domain.TypeReceipt), string(domain.TypeOrder),
		string(domain.TypeShipping), string(domain.TypeNotification),
		string(domain.TypeMessage), string(domain.TypeEvent),
		string(domain.TypeOTP), string(domain.TypeUncategorized),
	}
	parts := make([]string, 0, len(noise))
	for _, typ := range order {
		count, ok := noise[typ]
		if !ok {
			continue
		}
		label := typ
		if count != 1 {
			label += "s"
		}
		href := LabelLink("mailq/" + typ)
		parts = append(parts, fmt.Sprintf(`<a href="%s">%d %s</a>`,
			html.EscapeString(href), count, html.EscapeString(label)))
	}
	if len(parts) == 0 {
		return
	}
	sb.WriteString(`<div class="footer">` + strings.Join(parts, " · ") + "</div>\n")
}

// RenderFallbackDigest is the deterministic email-list digest used when
// the pipeline fails: the raw batch grouped by pre-assigned importance,
// each email linked to its thread.
func RenderFallbackDigest(emails []domain.Email, greeting string) string {
	var sb strings.Builder
	openDocument(&sb, greeting)

	groups := []struct {
		importance domain.EmailImportance
		heading    string
	}{
		{domain.ImportanceCritical, "Critical"},
		{domain.ImportanceTimeSensitive, "Time Sensitive"},
		{domain.ImportanceRoutine, "Everything Else"},
	}

	n := 0
	rendered := false
	for _, g := range groups {
		var lines []string
		for i := range emails {
			email := &emails[i]
			imp := email.Importance
			if imp == "" {
				imp = domain.ImportanceRoutine
			}
			if imp != g.importance {
				continue
			}
			n++
			href := BestLink(email.ThreadID, email.ID, email.Subject)
			lines = append(lines, fmt.Sprintf(`<li value="%d"><a href="%s">%s</a></li>`,
				n, html.EscapeString(href), html.EscapeString(email.Subject)))
		}
		if len(lines) == 0 {
			continue
		}
		rendered = true
		sb.WriteString("<h2>" + html.EscapeString(g.heading) + "</h2>\n<ol>\n")
		sb.WriteString(strings.Join(lines, "\n") + "\n</ol>\n")
	}

	if !rendered {
		sb.WriteString(inboxClearBlock)
	}
	closeDocument(&sb)
	return sb.String()
}

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// RenderPlainText strips the HTML document to a readable text rendering.
func RenderPlainText(htmlDoc string) string {
	text := htmlDoc
	// Drop the style block entirely.
	if start := strings.Index(text, "<style>"); start >= 0 {
		if end := strings.Index(text, "</style>"); end > start {
			text = text[:start] + text[end+len("</style>"):]
		}
	}
	text = strings.ReplaceAll(text, "</h2>", "\n")
	text = strings.ReplaceAll(text, "</li>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CountWords counts whitespace-separated words in the text rendering.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
