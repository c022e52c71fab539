package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/models"
)

// Labels as printed on the detail page. Alternatives cover portal
// versions.
var (
	labelNumber         = []string{"Processo", "Número do Processo"}
	labelStatus         = []string{"Status", "Situação"}
	labelOriginUnit     = []string{"Unidade de Origem", "Unidade Origem"}
	labelClassification = []string{"Assunto do Processo", "Classificação"}
	labelSubject        = []string{"Assunto Detalhado"}
	labelNotes          = []string{"Observação", "Observações"}
	labelOpenedAt       = []string{"Data de Autuação", "Autuado em"}
)

var (
	interestedColumns = []column{
		{"type", []string{"tipo", "categoria"}},
		{"name", []string{"nome", "interessado", "identifica"}},
	}
	movementColumns = []column{
		{"sentAt", []string{"data de envio", "data envio", "enviado em", "data/hora envio"}},
		{"receivedAt", []string{"data de receb", "data receb", "recebido em", "recebimento"}},
		{"receiver", []string{"recebedor", "recebido por", "receb"}},
		{"sender", []string{"remetente", "enviado por", "envi"}},
		{"origin", []string{"origem"}},
		{"destination", []string{"destino"}},
		{"urgent", []string{"urgen"}},
	}
	documentColumns = []column{
		{"order", []string{"ordem", "seq", "n."}},
		{"date", []string{"data"}},
		{"origin", []string{"origem", "unidade"}},
		{"nature", []string{"natureza"}},
		{"type", []string{"tipo", "documento"}},
		{"link", []string{"visualizar", "arquivo", "acao", "download"}},
	}
	incidentColumns = []column{
		{"requestedAt", []string{"data da solicita", "data de solicita", "data solicita"}},
		{"cancelledAt", []string{"data do cancel", "data de cancel", "data cancel"}},
		{"requestedBy", []string{"solicita"}},
		{"cancelledBy", []string{"cancelad", "responsavel"}},
		{"document", []string{"documento"}},
		{"justification", []string{"justificativa", "motivo"}},
	}
)

var classificationRe = regexp.MustCompile(`^\s*([\d.]+)\s*-\s*(.+)$`)

// DetailParser turns a rendered detail page into a ProcessRecord.
type DetailParser struct {
	BaseURL string
	// DocumentURLTemplate builds a link from a numeric document id.
	DocumentURLTemplate string
	Matchers            []LabelMatcher
	Locators            []TableLocator
}

// Parse fills every field it can find. fallbackNumber is used when the
// page does not show a canonical protocol. An error means the page did
// not look like a detail page at all.
func (p *DetailParser) Parse(html, fallbackNumber string) (*models.ProcessRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperr.Wrap(apperr.Unknown, err, "parse detail page")
	}
	matchers := p.Matchers
	if len(matchers) == 0 {
		matchers = DefaultMatchers
	}
	locators := p.Locators
	if len(locators) == 0 {
		locators = DefaultLocators
	}

	rec := &models.ProcessRecord{
		Status:     lookup(doc, matchers, labelStatus...),
		OriginUnit: lookup(doc, matchers, labelOriginUnit...),
		Subject:    lookup(doc, matchers, labelSubject...),
		Notes:      lookup(doc, matchers, labelNotes...),
		OpenedAt:   lookup(doc, matchers, labelOpenedAt...),
	}

	pageNumber := lookup(doc, matchers, labelNumber...)
	if IsProtocol(pageNumber) {
		rec.Number = strings.TrimSpace(pageNumber)
	} else {
		rec.Number = fallbackNumber
	}

	if c := lookup(doc, matchers, labelClassification...); c != "" {
		if m := classificationRe.FindStringSubmatch(c); m != nil {
			rec.Classification = models.Classification{Code: m[1], Description: strings.TrimSpace(m[2])}
		} else {
			rec.Classification = models.Classification{Description: c}
		}
	}

	rec.Interested = parseInterested(FindTable(doc, locators, interestedTable))
	rec.Movements = parseMovements(FindTable(doc, locators, movementsTable))
	rec.Documents = p.parseDocuments(FindTable(doc, locators, documentsTable))
	rec.Incidents = parseIncidents(FindTable(doc, locators, incidentsTable))

	if rec.Status == "" && !IsProtocol(pageNumber) && len(rec.Movements) == 0 && len(rec.Documents) == 0 {
		return nil, apperr.New(apperr.Unknown, "detail page has no process data")
	}

	if n := len(rec.Movements); n > 0 && rec.Movements[n-1].DestinationUnit != "" {
		rec.CurrentUnit = rec.Movements[n-1].DestinationUnit
	} else {
		rec.CurrentUnit = rec.OriginUnit
	}
	rec.Fingerprint = Fingerprint(rec)
	return rec, nil
}

func parseInterested(t *goquery.Selection) []models.InterestedParty {
	out := []models.InterestedParty{}
	pt := parseTable(t, interestedColumns)
	for _, tr := range pt.rows {
		party := models.InterestedParty{Type: pt.cell(tr, "type"), Name: pt.cell(tr, "name")}
		if party.Name != "" || party.Type != "" {
			out = append(out, party)
		}
	}
	return out
}

func parseMovements(t *goquery.Selection) []models.MovementEvent {
	out := []models.MovementEvent{}
	pt := parseTable(t, movementColumns)
	for _, tr := range pt.rows {
		m := models.MovementEvent{
			OriginUnit:      pt.cell(tr, "origin"),
			DestinationUnit: pt.cell(tr, "destination"),
			Sender:          pt.cell(tr, "sender"),
			Receiver:        pt.cell(tr, "receiver"),
			SentAt:          pt.cell(tr, "sentAt"),
			ReceivedAt:      pt.cell(tr, "receivedAt"),
			Urgent:          isYes(pt.cell(tr, "urgent")),
		}
		if m.OriginUnit == "" && m.DestinationUnit == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (p *DetailParser) parseDocuments(t *goquery.Selection) []models.DocumentRef {
	out := []models.DocumentRef{}
	pt := parseTable(t, documentColumns)
	for _, tr := range pt.rows {
		d := models.DocumentRef{
			Type:       pt.cell(tr, "type"),
			Date:       pt.cell(tr, "date"),
			OriginUnit: pt.cell(tr, "origin"),
			Nature:     pt.cell(tr, "nature"),
		}
		if d.Type == "" && d.Date == "" {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSuffix(pt.cell(tr, "order"), ".")); err == nil && n > 0 {
			d.Order = n
		}
		link := pt.cellSel(tr, "link")
		if link == nil || link.Length() == 0 {
			link = tr
		}
		d.URL = documentURL(link, p.BaseURL, p.DocumentURLTemplate)
		out = append(out, d)
	}
	assignOrders(out)
	return out
}

// assignOrders makes every order unique, since it names the document. The
// first row claiming an order keeps it; rows with a missing or repeated
// order are numbered after the highest one, in page order.
func assignOrders(docs []models.DocumentRef) {
	used := make(map[int]bool, len(docs))
	next := 0
	for _, d := range docs {
		next = max(next, d.Order)
	}
	for i := range docs {
		if docs[i].Order > 0 && !used[docs[i].Order] {
			used[docs[i].Order] = true
			continue
		}
		next++
		docs[i].Order = next
		used[next] = true
	}
}

func parseIncidents(t *goquery.Selection) []models.CancellationIncident {
	out := []models.CancellationIncident{}
	pt := parseTable(t, incidentColumns)
	for _, tr := range pt.rows {
		inc := models.CancellationIncident{
			Document:      pt.cell(tr, "document"),
			RequestedBy:   pt.cell(tr, "requestedBy"),
			RequestedAt:   pt.cell(tr, "requestedAt"),
			CancelledBy:   pt.cell(tr, "cancelledBy"),
			CancelledAt:   pt.cell(tr, "cancelledAt"),
			Justification: pt.cell(tr, "justification"),
		}
		if inc.Document == "" && inc.Justification == "" {
			continue
		}
		out = append(out, inc)
	}
	return out
}
