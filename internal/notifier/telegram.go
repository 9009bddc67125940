package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Haasie/huizen-zoeker/internal/normalizer"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
)

// DefaultTelegramAPI is the production Telegram Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram delivers notifications through the Telegram Bot API.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegram returns a Telegram channel. baseURL is the Bot API root,
// override it in tests.
func NewTelegram(client *http.Client, baseURL, token, chatID string) *Telegram {
	return &Telegram{
		client:  client,
		baseURL: baseURL,
		token:   token,
		chatID:  chatID,
	}
}

// Name implements Channel.
func (t *Telegram) Name() string {
	return "telegram"
}

// SendEvent sends one formatted change message.
func (t *Telegram) SendEvent(ctx context.Context, event models.ChangeEvent) error {
	return t.sendMessage(ctx, FormatEventMessage(event))
}

// SendSummary sends the cycle summary message.
func (t *Telegram) SendSummary(ctx context.Context, summary models.CycleSummary) error {
	return t.sendMessage(ctx, FormatSummaryMessage(summary))
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("can't build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("can't reach telegram: %w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("telegram returned status %d: %w", resp.StatusCode, ErrTransient)
	default:
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
}

// FormatEventMessage renders one change event the way subscribers read
// it: headline, address block, price, area, type, what changed, link.
func FormatEventMessage(event models.ChangeEvent) string {
	var headline string
	switch {
	case event.Type == models.ChangeNew && event.Current != nil && event.Current.Relisted:
		headline = "🔁 *Opnieuw aangeboden woning*"
	case event.Type == models.ChangeNew:
		headline = "🏠 *Nieuwe woning*"
	case event.Type == models.ChangeUpdated:
		headline = "🔄 *Gewijzigde woning*"
	case event.Type == models.ChangeRemoved:
		headline = "❌ *Verwijderde woning*"
	default:
		headline = "ℹ️ *Woning informatie*"
	}

	listing := event.Subject()

	var msg strings.Builder
	msg.WriteString(headline + "\n\n")
	msg.WriteString(fmt.Sprintf("*%s*\n%s\n\n", listing.Address, listing.City))
	msg.WriteString(fmt.Sprintf("*Prijs:* %s\n", normalizer.FormatPrice(listing.Price)))
	msg.WriteString(fmt.Sprintf("*Oppervlakte:* %s\n", normalizer.FormatArea(listing.AreaM2)))
	if listing.PropertyType != nil {
		msg.WriteString(fmt.Sprintf("*Type:* %s\n", *listing.PropertyType))
	}

	if event.Type == models.ChangeUpdated && len(event.Changes) > 0 {
		msg.WriteString("\n*Wijzigingen:*\n")
		for _, change := range event.Changes {
			msg.WriteString(fmt.Sprintf("- %s: %s → %s\n", dutchFieldName(change.Field), change.Old, change.New))
		}
	}

	if listing.URL != "" {
		msg.WriteString(fmt.Sprintf("\n[Bekijk op website](%s)", listing.URL))
	}

	return msg.String()
}

// FormatSummaryMessage renders the cycle summary.
func FormatSummaryMessage(summary models.CycleSummary) string {
	total := summary.New + summary.Updated + summary.Removed

	var msg strings.Builder
	msg.WriteString("🏠 *Huizenzoeker samenvatting*\n\n")
	if total == 0 {
		msg.WriteString("Geen wijzigingen gevonden.")
	} else {
		msg.WriteString(fmt.Sprintf("Totaal %d wijzigingen gevonden:\n", total))
		msg.WriteString(fmt.Sprintf("- %d nieuwe woningen\n", summary.New))
		msg.WriteString(fmt.Sprintf("- %d gewijzigde woningen\n", summary.Updated))
		msg.WriteString(fmt.Sprintf("- %d verwijderde woningen", summary.Removed))
	}

	if failed := summary.FailedSources(); len(failed) > 0 {
		msg.WriteString(fmt.Sprintf("\n\n⚠️ Mislukte bronnen: %s", strings.Join(failed, ", ")))
	}
	if summary.Undelivered > 0 {
		msg.WriteString(fmt.Sprintf("\n⚠️ %d meldingen niet afgeleverd", summary.Undelivered))
	}

	return msg.String()
}

func dutchFieldName(field string) string {
	switch field {
	case "price":
		return "Prijs"
	case "area":
		return "Oppervlakte"
	case "status":
		return "Status"
	case "address":
		return "Adres"
	default:
		return field
	}
}
