package agent

import (
	"strconv"
	"strings"

	"github.com/ashureev/jobassist/internal/domain"
)

// IntentKind classifies an inbound message.
type IntentKind int

const (
	// IntentText is free text with no recognized command.
	IntentText IntentKind = iota
	// IntentEnter is synthesized when an agent takes over within a turn.
	IntentEnter
	IntentBrowse
	IntentMore
	IntentSelectJob
	IntentApply
	// IntentChoose is a bare list number typed by the user.
	IntentChoose
	IntentDay
	IntentSlot
	IntentConfirm
	// IntentStatus asks for the user's applications and interviews.
	IntentStatus
	IntentGreeting
)

// Postback payloads rendered into quick replies.
const (
	postbackBrowse  = "BROWSE"
	postbackApply   = "APPLY"
	postbackConfirm = "CONFIRM"
	postbackStatus  = "STATUS"
	prefixJob       = "JOB:"
	prefixMore      = "MORE:"
	prefixDay       = "DAY:"
	prefixSlot      = "SLOT:"
)

// Intent is the parsed meaning of an inbound event.
type Intent struct {
	Kind  IntentKind
	Arg   string
	Arg2  string
	Index int
	Raw   string
}

var (
	applyPhrases   = []string{"apply", "aplicar", "postular", "postularme", "me interesa", "quiero aplicar"}
	browsePhrases  = []string{"show jobs", "jobs", "vacantes", "ver vacantes", "otras vacantes", "mas vacantes", "empleos", "trabajos", "buscar empleo", "buscar trabajo"}
	greetPhrases   = []string{"hola", "hi", "hello", "buenos dias", "buen dia", "buenas tardes", "buenas noches", "buenas", "que tal", "hola buenos dias", "hola buenas tardes"}
	statusPhrases  = []string{"mis postulaciones", "mi postulacion", "seguimiento", "estado de mi postulacion", "mi entrevista", "mis entrevistas"}
	confirmPhrases = []string{"confirm", "confirmar", "confirmo", "si, confirmo", "si confirmo"}
	foldAccents    = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "¿", "", "?", "", "¡", "", "!", "", ".", "")
)

// ParseIntent classifies an inbound event. Postbacks are exact commands;
// free text is matched against a small keyword list.
func ParseIntent(ev domain.InboundEvent) Intent {
	if p := strings.TrimSpace(ev.Postback); p != "" {
		if in, ok := parsePostback(p); ok {
			return in
		}
	}

	raw := strings.TrimSpace(ev.Text)
	if in, ok := parsePostback(raw); ok {
		return in
	}

	norm := foldAccents.Replace(strings.ToLower(raw))
	norm = strings.Join(strings.Fields(norm), " ")
	switch {
	case norm == "":
		return Intent{Kind: IntentText, Raw: raw}
	case isNumber(norm) && len(norm) <= 2:
		n, _ := strconv.Atoi(norm)
		return Intent{Kind: IntentChoose, Index: n, Raw: raw}
	case matchesAny(norm, confirmPhrases, true):
		return Intent{Kind: IntentConfirm, Raw: raw}
	case matchesAny(norm, greetPhrases, true):
		return Intent{Kind: IntentGreeting, Raw: raw}
	case matchesAny(norm, statusPhrases, false):
		return Intent{Kind: IntentStatus, Raw: raw}
	case matchesAny(norm, applyPhrases, false):
		return Intent{Kind: IntentApply, Raw: raw}
	case matchesAny(norm, browsePhrases, false):
		return Intent{Kind: IntentBrowse, Raw: raw}
	}
	return Intent{Kind: IntentText, Raw: raw}
}

func parsePostback(p string) (Intent, bool) {
	switch {
	case p == postbackBrowse:
		return Intent{Kind: IntentBrowse, Raw: p}, true
	case p == postbackApply:
		return Intent{Kind: IntentApply, Raw: p}, true
	case p == postbackConfirm:
		return Intent{Kind: IntentConfirm, Raw: p}, true
	case p == postbackStatus:
		return Intent{Kind: IntentStatus, Raw: p}, true
	case strings.HasPrefix(p, prefixJob):
		return Intent{Kind: IntentSelectJob, Arg: strings.TrimSpace(p[len(prefixJob):]), Raw: p}, true
	case strings.HasPrefix(p, prefixMore):
		return Intent{Kind: IntentMore, Arg: strings.TrimSpace(p[len(prefixMore):]), Raw: p}, true
	case strings.HasPrefix(p, prefixDay):
		return Intent{Kind: IntentDay, Arg: strings.TrimSpace(p[len(prefixDay):]), Raw: p}, true
	case strings.HasPrefix(p, prefixSlot):
		day, tm, _ := strings.Cut(p[len(prefixSlot):], "|")
		return Intent{Kind: IntentSlot, Arg: strings.TrimSpace(day), Arg2: strings.TrimSpace(tm), Raw: p}, true
	}
	return Intent{}, false
}

func matchesAny(s string, phrases []string, exact bool) bool {
	for _, p := range phrases {
		if s == p || (!exact && containsWord(s, p)) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase occurs in s on word boundaries.
func containsWord(s, phrase string) bool {
	return strings.Contains(" "+s+" ", " "+phrase+" ")
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PostbackJob is the quick reply value selecting a job.
func PostbackJob(id string) string { return prefixJob + id }

// PostbackSlot is the quick reply value selecting an interview slot.
func PostbackSlot(day, tm string) string { return prefixSlot + day + "|" + tm }
