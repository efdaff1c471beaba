// Package extract turns rendered lot-page markup into records. All
// site-specific selectors, label matching and fallback chains live here;
// expected data absence resolves to sentinel values, never to errors.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bankrot/harvester/internal/lot"
)

var (
	lotNumberRe   = regexp.MustCompile(`(?i)Лот\s*№\s*(\d+)`)
	tradeNumberRe = regexp.MustCompile(`(?i)торги\s*№\s*(\d+)`)
)

// Labels inside the structured info blocks.
const (
	pricesBlockTitle = "Цены"
	datesBlockTitle  = "Даты торгов"

	startPriceLabel = "Начальная"
	bidStepLabel    = "Шаг повышения"
	depositLabel    = "Задаток"
	acceptFromLabel = "Приём заявок с"
	acceptToLabel   = "Приём заявок до"
)

// Parse extracts one record from a detail page. It only errors when the
// markup cannot be parsed at all; pages missing individual blocks produce
// records full of sentinels and the caller applies the emptiness gate.
func Parse(html, sourceURL string) (*lot.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse lot page: %w", err)
	}

	r := &lot.Record{SourceURL: sourceURL}
	r.LotNumber, r.TradeNumber = lotAndTradeNumbers(doc)
	r.Status = statusValue(doc)

	prices := infoBlock(doc, pricesBlockTitle)
	r.StartPrice = blockValue(prices, startPriceLabel)
	r.BidStep = blockValue(prices, bidStepLabel)
	r.Deposit = depositValue(prices)

	dates := infoBlock(doc, datesBlockTitle)
	r.TradePeriod = fmt.Sprintf("%s — %s",
		blockValue(dates, acceptFromLabel),
		blockValue(dates, acceptToLabel),
	)

	r.Description, r.Address = descriptionAndAddress(doc)
	r.DebtorInfo = debtorInfo(doc)
	r.Documents = documents(doc)

	return r, nil
}

// normalizeSpace collapses all whitespace runs to single spaces and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textOf(sel *goquery.Selection) string {
	return normalizeSpace(sel.Text())
}

// lotAndTradeNumbers parses the help-text span. The two captures are
// independent; either may stay unresolved.
func lotAndTradeNumbers(doc *goquery.Document) (lot.Value, lot.Value) {
	help := doc.Find("span.lot__help").First()
	if help.Length() == 0 {
		return lot.NotFound, lot.NotFound
	}
	text := textOf(help)

	lotNum, tradeNum := lot.NotFound, lot.NotFound
	if m := lotNumberRe.FindStringSubmatch(text); m != nil {
		lotNum = lot.Found(m[1])
	}
	if m := tradeNumberRe.FindStringSubmatch(text); m != nil {
		tradeNum = lot.Found(m[1])
	}
	return lotNum, tradeNum
}

func statusValue(doc *goquery.Document) lot.Value {
	status := doc.Find("span.lot__status").First()
	if status.Length() == 0 {
		return lot.NotFound
	}
	return lot.Found(textOf(status))
}

// infoBlock returns the subtitle→value pairs of the lot-info wrapper whose
// title matches exactly, case-insensitively. Missing block yields an empty
// map so field lookups fall through to sentinels.
func infoBlock(doc *goquery.Document, title string) map[string]string {
	out := map[string]string{}
	doc.Find("div.lot-info__wrapper").EachWithBreak(func(_ int, wrapper *goquery.Selection) bool {
		h3 := wrapper.Find("h3.lot-info__title").First()
		if h3.Length() == 0 || !strings.EqualFold(textOf(h3), title) {
			return true
		}
		wrapper.Find("div.lot-info__item").Each(func(_ int, item *goquery.Selection) {
			sub := item.Find(".lot-info__subtitle").First()
			val := item.Find(".lot-info__value").First()
			if sub.Length() == 0 || val.Length() == 0 {
				return
			}
			out[textOf(sub)] = textOf(val)
		})
		return false
	})
	return out
}

func blockValue(block map[string]string, label string) lot.Value {
	if v, ok := block[label]; ok && v != "" {
		return lot.Found(v)
	}
	return lot.NotFound
}

// depositValue treats an empty or missing deposit as explicitly absent:
// lots without a deposit are a normal business case, not missing data.
func depositValue(prices map[string]string) lot.Value {
	if v, ok := prices[depositLabel]; ok && v != "" {
		return lot.Found(v)
	}
	return lot.Absent
}

// detailsInfo collects the debtor block. Identification numbers prefer the
// machine-readable data-number attribute over display text, which the site
// formats with spacing.
func detailsInfo(doc *goquery.Document) map[string]string {
	out := map[string]string{}
	doc.Find("div.lot-details-info__item").Each(func(_ int, item *goquery.Selection) {
		sub := item.Find(".lot-details-info__subtitle").First()
		if sub.Length() == 0 {
			return
		}
		key := textOf(sub)

		val := item.Find(".lot-details-info__value").First()
		if val.Length() == 0 {
			val = item.Find("span, div, a").First()
		}
		if val.Length() == 0 {
			return
		}

		upper := strings.ToUpper(key)
		if link := item.Find("a[data-number]").First(); link.Length() > 0 && (upper == "ИНН" || upper == "ОГРН") {
			if n, ok := link.Attr("data-number"); ok && n != "" {
				out[key] = n
			} else {
				out[key] = textOf(link)
			}
			return
		}
		out[key] = textOf(val)
	})
	return out
}

// debtorNameLabels is the fallback chain for the debtor's display name.
var debtorNameLabels = []string{
	"Наименование / ФИО",
	"Полное наименование",
	"Наименование",
	"Сведения о должнике",
}

func debtorInfo(doc *goquery.Document) string {
	details := detailsInfo(doc)

	name := lot.NotFoundText
	for _, label := range debtorNameLabels {
		if v, ok := details[label]; ok && v != "" {
			name = v
			break
		}
	}

	inn := details["ИНН"]
	if inn == "" {
		inn = lot.NotFoundText
	}

	info := fmt.Sprintf("%s; ИНН: %s", name, inn)
	if contact := details["Контактное лицо"]; contact != "" && contact != lot.NotFoundText {
		info += fmt.Sprintf("; Контакт: %s", contact)
	}
	return info
}

// descriptionAndAddress reads the content block. When the dedicated
// description paragraph exists, the address comes from its location-icon
// anchor or, failing that, the free-text strategies. Otherwise all
// paragraphs are joined and scanned.
func descriptionAndAddress(doc *goquery.Document) (lot.Value, lot.Value) {
	content := doc.Find("div.lot__content.text-break").First()
	if content.Length() == 0 {
		return lot.NotFound, lot.NotFound
	}

	descP := content.Find(`p[itemprop="description"]`).First()
	if descP.Length() > 0 {
		desc := textOf(descP)
		addr := addressFromDescription(descP)
		if desc == "" {
			return lot.NotFound, addr
		}
		return lot.Found(desc), addr
	}

	var parts []string
	content.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := textOf(p); t != "" {
			parts = append(parts, t)
		}
	})
	full := strings.Join(parts, "\n")
	addr := addressFromText(full)
	if strings.TrimSpace(full) == "" {
		return lot.NotFound, addr
	}
	return lot.Found(full), addr
}

// addressFromDescription prefers the anchor carrying the location icon;
// its text is the address the site itself geocoded.
func addressFromDescription(descP *goquery.Selection) lot.Value {
	found := lot.NotFound
	descP.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		use := a.Find("use").First()
		if use.Length() == 0 {
			return true
		}
		href, ok := use.Attr("xlink:href")
		if !ok {
			// The HTML parser may fold the xlink namespace away.
			href, _ = use.Attr("href")
		}
		if !strings.Contains(href, "icon-location") {
			return true
		}
		if addr := textOf(a); addr != "" {
			found = lot.Found(addr)
		}
		return false
	})
	if found.IsFound() {
		return found
	}
	return addressFromText(descP.Text())
}

// documents collects (name, link) pairs from the document list area,
// deduplicated by URL in first-seen order.
func documents(doc *goquery.Document) []lot.Attachment {
	var docs []lot.Attachment
	seen := map[string]struct{}{}
	doc.Find(".lot-documents__wrapper a.lot-documents__link").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		name := textOf(a)
		if href == "" || name == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		docs = append(docs, lot.Attachment{Name: name, URL: href})
	})
	return docs
}
