package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// MinAmount is the smallest value accepted as a money amount. Smaller
// numbers in a body are quantities, not prices.
const MinAmount = 100

// Default token lists. Matching is accent and case insensitive; the
// listed form is the canonical one written back on matches.
var (
	DefaultQuartiers = []string{
		"Akwa", "Bonaberi", "Bonamoussadi", "Bonapriso", "Bepanda",
		"Deido", "Makepe", "Logbessou", "Logpom", "Ndogbong", "Ndokoti",
		"New Bell", "PK8", "PK10", "PK12", "PK14", "Village", "Yassa",
		"Bastos", "Biyem Assi", "Emana", "Essos", "Etoudi", "Mendong",
		"Mimboman", "Mvan", "Nkolbisson", "Nsam", "Obili", "Odza",
		"Simbock", "Simbock 2", "Tsinga", "Ekounou", "Mvog Ada",
	}
	DefaultCarriers = []string{
		"Jordan", "Landry", "Carlos", "Steve", "Express", "Moto 1", "Moto 2",
	}
)

var accentFolder = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
	"’", "'",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(s))
}

var (
	// Runs of digits with tolerated spaces and placeholder x characters.
	digitRunRe = regexp.MustCompile(`[0-9xX][0-9xX ]*`)
	phoneRe    = regexp.MustCompile(`6\d{8}`)

	// Amounts in free text, after phone digits are masked out. Thousands
	// separators and a k suffix are tolerated.
	amountRe = regexp.MustCompile(`\d{1,3}(?:[ .,]\d{3})+|\d+\s?[kK]\b|\d+`)

	modifierRe    = regexp.MustCompile(`(?i)modifier\s*:`)
	deliveredRe   = regexp.MustCompile(`\blivree?s?\b`)
	collectedRe   = regexp.MustCompile(`\bcollect(?:ee?s?)?\b`)
	failedRe      = regexp.MustCompile(`\bechecs?\b`)
	pickupRe      = regexp.MustCompile(`\bpickup\b|\bramassage\b`)
	amountLineRe  = regexp.MustCompile(`^(?:\d{1,3}(?:[ .,]\d{3})+|\d+)\s*[kK]?$`)
	phoneExactRe  = regexp.MustCompile(`^6\d{8}$`)
)

// Parser classifies raw group-chat bodies into create and update commands.
// Token lists are per instance so tenants can extend them.
type Parser struct {
	quartiers map[string]string // folded -> canonical
	carriers  map[string]string
}

type Option func(*Parser)

func WithQuartiers(extra ...string) Option {
	return func(p *Parser) {
		for _, q := range extra {
			p.quartiers[fold(strings.TrimSpace(q))] = strings.TrimSpace(q)
		}
	}
}

func WithCarriers(extra ...string) Option {
	return func(p *Parser) {
		for _, c := range extra {
			p.carriers[fold(strings.TrimSpace(c))] = strings.TrimSpace(c)
		}
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{
		quartiers: make(map[string]string, len(DefaultQuartiers)),
		carriers:  make(map[string]string, len(DefaultCarriers)),
	}
	for _, q := range DefaultQuartiers {
		p.quartiers[fold(q)] = q
	}
	for _, c := range DefaultCarriers {
		p.carriers[fold(c)] = c
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse classifies a body. Update triggers are checked before create
// shapes so that "livré 612345678" never reads as a new delivery.
func (p *Parser) Parse(body string) Result {
	body = strings.TrimSpace(body)
	if body == "" {
		return ignore()
	}
	if upd := p.parseUpdate(body); upd != nil {
		return Result{Kind: KindUpdate, Update: upd}
	}
	if cr := p.parseCreate(body); cr != nil {
		return Result{Kind: KindCreate, Create: cr}
	}
	return ignore()
}

func (p *Parser) parseUpdate(body string) *Update {
	folded := fold(body)
	phones, masked := maskPhones(body)

	var phone string
	if len(phones) > 0 {
		phone = phones[0]
	}

	if strings.Contains(folded, "changer numero") {
		if len(phones) < 2 {
			return nil
		}
		return &Update{
			Action:   ActionChangePhone,
			Phone:    phones[0],
			OldPhone: phones[0],
			NewPhone: phones[1],
		}
	}

	if loc := modifierRe.FindStringIndex(body); loc != nil {
		return p.parseModifier(body[loc[1]:], phone)
	}

	foldedMasked := fold(masked)
	switch {
	case deliveredRe.MatchString(foldedMasked):
		upd := &Update{Action: ActionMarkDelivered, Phone: phone}
		if amt, _, ok := findAmount(masked); ok {
			upd.Amount = &amt
		}
		return upd
	case collectedRe.MatchString(foldedMasked):
		amt, _, ok := findAmount(masked)
		if !ok {
			return nil
		}
		return &Update{Action: ActionCollect, Phone: phone, Amount: &amt}
	case failedRe.MatchString(foldedMasked),
		strings.Contains(foldedMasked, "numero ne passe pas"):
		return &Update{Action: ActionMarkFailed, Phone: phone}
	case pickupRe.MatchString(foldedMasked),
		strings.Contains(foldedMasked, "elle passe chercher"),
		strings.Contains(foldedMasked, "il passe chercher"):
		return &Update{Action: ActionMarkPickup, Phone: phone}
	case strings.Contains(foldedMasked, "en attente"):
		return &Update{Action: ActionMarkPending, Phone: phone}
	}
	return nil
}

// parseModifier reads the text after "modifier:". The first amount is the
// new amount due, whatever non-phone text remains is the new item list.
func (p *Parser) parseModifier(rest, phone string) *Update {
	_, masked := maskPhones(rest)
	upd := &Update{Action: ActionModify, Phone: phone}

	if amt, loc, ok := findAmount(masked); ok {
		upd.AmountDue = &amt
		masked = masked[:loc[0]] + masked[loc[1]:]
	}
	items := strings.Map(func(r rune) rune {
		if r == '#' {
			return -1
		}
		return r
	}, masked)
	items = strings.Trim(items, " \t\n,;:-")
	if items != "" {
		upd.Items = &items
	}
	if upd.AmountDue == nil && upd.Items == nil {
		return nil
	}
	return upd
}

func (p *Parser) parseCreate(body string) *Create {
	var lines []string
	for _, l := range strings.Split(body, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 4 {
		return nil
	}
	if cr := p.parsePositional(lines); cr != nil {
		return cr
	}
	return p.parseFreeOrder(lines)
}

// parsePositional handles the fixed shape: phone, items, amount, quartier.
// A trailing line naming a carrier is split off; other extra lines join
// the item list.
func (p *Parser) parsePositional(lines []string) *Create {
	phone, ok := phoneFromLine(lines[0])
	if !ok {
		return nil
	}
	amount, ok := amountFromLine(lines[2])
	if !ok {
		return nil
	}
	cr := &Create{
		Phone:     phone,
		Items:     lines[1],
		AmountDue: amount,
		Quartier:  lines[3],
	}
	extra := lines[4:]
	if len(extra) > 0 {
		if c, ok := p.carriers[fold(extra[len(extra)-1])]; ok {
			cr.Carrier = c
			extra = extra[:len(extra)-1]
		}
	}
	for _, l := range extra {
		cr.Items += " + " + l
	}
	return cr
}

// parseFreeOrder accepts the four components in any line order. It needs
// exactly one phone line, exactly one amount line and a known quartier.
func (p *Parser) parseFreeOrder(lines []string) *Create {
	var (
		phone, quartier string
		amount          int64
		phoneCount      int
		amountCount     int
		rest            []string
	)
	for _, l := range lines {
		if ph, ok := phoneFromLine(l); ok {
			phone = ph
			phoneCount++
			continue
		}
		if amt, ok := amountFromLine(l); ok {
			amount = amt
			amountCount++
			continue
		}
		if q, ok := p.quartiers[fold(l)]; ok && quartier == "" {
			quartier = q
			continue
		}
		rest = append(rest, l)
	}
	if phoneCount != 1 || amountCount != 1 || quartier == "" {
		return nil
	}
	cr := &Create{Phone: phone, AmountDue: amount, Quartier: quartier}
	if len(rest) > 0 {
		if c, ok := p.carriers[fold(rest[len(rest)-1])]; ok {
			cr.Carrier = c
			rest = rest[:len(rest)-1]
		}
	}
	cr.Items = strings.Join(rest, " + ")
	if cr.Items == "" {
		return nil
	}
	return cr
}

// maskPhones finds every local mobile number in the body, tolerating
// spaces between digits and x as an unreadable-digit placeholder. It
// returns the normalized numbers and a copy of the body with the phone
// bytes replaced by '#' so amount extraction cannot re-read them.
func maskPhones(body string) ([]string, string) {
	var phones []string
	out := []byte(body)

	for _, span := range digitRunRe.FindAllStringIndex(body, -1) {
		run := body[span[0]:span[1]]

		// Map cleaned digit positions back to original byte offsets.
		var cleaned []byte
		var offsets []int
		for i := 0; i < len(run); i++ {
			c := run[i]
			if c == ' ' {
				continue
			}
			if c == 'x' || c == 'X' {
				c = '0'
			}
			cleaned = append(cleaned, c)
			offsets = append(offsets, span[0]+i)
		}

		for _, m := range phoneRe.FindAllIndex(cleaned, -1) {
			phones = append(phones, string(cleaned[m[0]:m[1]]))
			for _, off := range offsets[m[0]:m[1]] {
				out[off] = '#'
			}
		}
	}
	return phones, string(out)
}

// phoneFromLine matches a line that is nothing but a phone number,
// optionally prefixed with +237 or 237.
func phoneFromLine(line string) (string, bool) {
	var b strings.Builder
	for _, r := range line {
		switch {
		case r == ' ' || r == '+' || r == '.' || r == '-':
		case r == 'x' || r == 'X':
			b.WriteByte('0')
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	c := strings.TrimPrefix(b.String(), "237")
	if !phoneExactRe.MatchString(c) {
		return "", false
	}
	return c, true
}

// amountFromLine matches a line that is nothing but a money amount.
func amountFromLine(line string) (int64, bool) {
	line = strings.TrimSpace(line)
	if !amountLineRe.MatchString(line) {
		return 0, false
	}
	return parseAmountToken(line)
}

// findAmount returns the first token in the text that parses to a valid
// amount, with the byte span it occupied.
func findAmount(text string) (int64, []int, bool) {
	for _, loc := range amountRe.FindAllStringIndex(text, -1) {
		if v, ok := parseAmountToken(text[loc[0]:loc[1]]); ok {
			return v, loc, true
		}
	}
	return 0, nil, false
}

func parseAmountToken(tok string) (int64, bool) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	thousands := strings.HasSuffix(tok, "k")
	if thousands {
		tok = strings.TrimSuffix(tok, "k")
	}
	cleaner := strings.NewReplacer(" ", "", ".", "", ",", "")
	v, err := strconv.ParseInt(cleaner.Replace(strings.TrimSpace(tok)), 10, 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		v *= 1000
	}
	if v < MinAmount {
		return 0, false
	}
	return v, true
}
