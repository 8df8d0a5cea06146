package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/utils"
)

// Patterns run against utils.Normalize output: lower case, no diacritics.
var (
	greetingRe  = regexp.MustCompile(`^\s*(hola|buenas(\s+(tardes|noches))?|buen(o|a)s?\s*dias?|hey)\b`)
	moreRe      = regexp.MustCompile(`\b(mas opciones|muestrame mas|muestrame otras|ver mas|mostrar mas)\b`)
	courierRe   = regexp.MustCompile(`\b(a\s*domicilio|envio\s*a\s*domicilio|domicilio)\b`)
	pickupRe    = regexp.MustCompile(`\b(recoger(lo|la)?\s+en\s+(la\s+)?(tienda|sucursal)|retiro\s+en\s+tienda|recogida\s+en\s+tienda)\b`)
	selectionRe = regexp.MustCompile(`(?:opcion\s*(\d{1,2}))|(?:\b(?:la|el)\s*(\d{1,2})\b)|(?:numero\s*(\d{1,2}))|(?:^\s*(\d{1,2})\s*$)`)
	addRe       = regexp.MustCompile(`\b(agrega|agregar|agregalo|agregala|agregame|anade|anadir|anadelo|mete|meter|pon|poner|ponme|suma|sumale)\b`)
	offTopicRe  = regexp.MustCompile(`(que\s+vend[e]n?|que\s+es\s+cassany|donde\s+estan|ubicacion|horarios?|quien(es)?\s+son|historia|como\s+funciona|politica(s)?\s+(de\s+)?(cambio|devolucion|datos)|poliza|envios?\s*(nacionales|a\s+donde)|metodos?\s+de\s+pago)`)
	smallTalkRe = regexp.MustCompile(`^(gracias|muchas gracias|ok|dale|listo|perfecto|bien|super|genial|ja(ja)+|je(je)+|vale|de acuerdo|entendido|thanks|okey)\W*$`)
	discoveryRe = regexp.MustCompile(`(no\s*se\s*que\s*comprar|que\s+me\s+(recomiendas|sugieres)|recomiendame|me\s+ayudas?\s+a\s+elegir|muestrame\s+opciones|quiero\s+ver\s+opciones|sugerencias|recomendacion)`)
	cartRe      = regexp.MustCompile(`\b(carrito|mi carrito|ver carrito|ver el carrito|carro|mi pedido|resumen del pedido)\b`)
	showRe      = regexp.MustCompile(`\b(muestrame|mostrarme|puedes mostrarme|puede mostrarme|podrias mostrarme|quiero ver|ensename|ensenar|tienes|tienen|busco)\b`)
	photosRe    = regexp.MustCompile(`\b(fotos?|imagenes?)\s+de\s+([a-z\s]+)`)
	rejectRe    = regexp.MustCompile(`\b(esas no|no me sirven?|no me gustan?|no la quiero|esa no es|no es esa|ninguna aplica|otras? opcion(es)?|otras?|algo diferente|algo distinto|son manga corta|quiero manga larga)\b`)
	paymentRe   = regexp.MustCompile(`(pagar|pago|quiero pagar|voy a pagar|prefiero pagar|el pago|pagaremos|pagare).*(transferencia|bancolombia|davivienda|pse|payu|pago en tienda|efectivo|contraentrega)` +
		`|(transferencia|bancolombia|davivienda|pse|payu|pago en tienda|efectivo|contraentrega).*(pagar|pago|quiero|voy|prefiero|pagaremos|pagare)`)
	confirmRe     = regexp.MustCompile(`\b(confirmar|confirmo|confirma|finalizar|cerrar|terminar|realizar)\b.*\b(pedido|compra|orden)\b`)
	affirmativeRe = regexp.MustCompile(`^(si|ok|okey|dale|listo|claro|confirmo|de acuerdo|esta bien|asi esta bien|hagale|perfecto)\b`)
	cancelRe      = regexp.MustCompile(`\b(ya no quiero|cancelar (el )?pedido|cancela (el )?pedido|cancelar (la )?compra|no deseo|me arrepenti)\b`)

	qtyWordRe = regexp.MustCompile(`\b(un|uno|una|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez)\b`)
	qtyNumRe  = regexp.MustCompile(`\b(\d{1,2})\b`)
)

var qtyWords = map[string]int{
	"un": 1, "uno": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
}

const maxQuantity = 10

// Handoff detection: a negative pattern vetoes any positive one.
var (
	handoffPositive = []*regexp.Regexp{
		regexp.MustCompile(`\b(hablar|escribir|chatear|comunicar(me)?)\s+con\s+(alguien|una\s+persona|un\s+asesor|asesor|humano)\b`),
		regexp.MustCompile(`\b(pon(me|er)|pasame|conect(a|ame)|conectar(me)?)\s+con\s+(un|una|el|la)?\s*(asesor|humano|persona)\b`),
		regexp.MustCompile(`\b(quiero|puedo|necesito)\s+(hablar|comunicarme)\s+con\s+(un|una|el|la)?\s*(asesor|persona|humano)\b`),
		regexp.MustCompile(`\b(atencion|trato)\s+(humana|personalizada|directa)\b`),
		regexp.MustCompile(`\b(siempre\s+hablo\s+con|me\s+atiende)\s+\w+\b`),
		regexp.MustCompile(`\b(enviame|mandame)\s+fotos\b`),
		regexp.MustCompile(`\b(muestrame|quiero\s+ver)\s+(lo\s+que\s+queda|las\s+fotos|el\s+catalogo\s+real)\b`),
		regexp.MustCompile(`\b(asesor|humano)\b`),
	}
	handoffNegative = []*regexp.Regexp{
		regexp.MustCompile(`\bno\b.*\b(hablar|asesor|persona|humano|atencion)\b`),
		regexp.MustCompile(`\b(prefiero|quiero)\s+(seguir|continuar)\s+(aqui|por\s+chat|con\s+el\s+bot)\b`),
		regexp.MustCompile(`\b(no\s+(necesito|requiero))\s+(asesor|atencion|persona|humano)\b`),
	}
)

// WantsHuman reports whether the shopper asks to talk to a person.
func WantsHuman(text string) bool {
	t := utils.Normalize(text)
	for _, re := range handoffNegative {
		if re.MatchString(t) {
			return false
		}
	}
	for _, re := range handoffPositive {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// ParseQuantity reads a unit count from a number word or digits, clamped to 1..10.
func ParseQuantity(text string) (int, bool) {
	t := utils.Normalize(text)
	if m := qtyWordRe.FindStringSubmatch(t); m != nil {
		return clampQuantity(qtyWords[m[1]]), true
	}
	if m := qtyNumRe.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return clampQuantity(n), true
	}
	return 0, false
}

func clampQuantity(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxQuantity {
		return maxQuantity
	}
	return n
}

// InferPaymentMethod maps payment words to a method, or "" when none is named.
func InferPaymentMethod(text string) string {
	t := utils.Normalize(text)
	switch {
	case strings.Contains(t, "transferencia") || strings.Contains(t, "bancolombia") || strings.Contains(t, "davivienda"):
		return models.PaymentTransfer
	case strings.Contains(t, "payu") || strings.Contains(t, "pse"):
		return models.PaymentPayU
	case strings.Contains(t, "pago en tienda") || strings.Contains(t, "efectivo") ||
		strings.Contains(t, "contraentrega") || strings.Contains(t, "en tienda"):
		return models.PaymentInStore
	}
	return ""
}

// selectionNumber returns the list number in "opción 2", "la 3" or a bare "2".
func selectionNumber(text string) (int, bool) {
	m := selectionRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

var (
	nameRe   = regexp.MustCompile(`(?i)\b(?:me llamo|mi nombre es)\s+(\p{L}+(?:\s+\p{L}+){0,3})`)
	soyRe    = regexp.MustCompile(`^(?i:soy)\s+(\p{Lu}\p{L}+(?:\s+\p{Lu}\p{L}+)?)[.!]?$`)
	nameStop = map[string]bool{
		"y": true, "e": true, "quiero": true, "necesito": true, "busco": true, "para": true,
		"de": true, "talla": true, "me": true, "y,": true, "pero": true, "gracias": true,
	}
)

// CaptureName extracts the shopper's name from "me llamo X", "mi nombre es X" or "Soy X".
func CaptureName(text string) (string, bool) {
	raw := strings.TrimSpace(text)
	var words []string
	if m := nameRe.FindStringSubmatch(raw); m != nil {
		words = strings.Fields(m[1])
	} else if m := soyRe.FindStringSubmatch(raw); m != nil {
		words = strings.Fields(m[1])
	}
	var kept []string
	for _, w := range words {
		if nameStop[strings.ToLower(w)] {
			break
		}
		kept = append(kept, titleCase(w))
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}

func titleCase(w string) string {
	r := []rune(strings.ToLower(w))
	if len(r) == 0 {
		return w
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// MatchPickupPoint finds the pickup point named in text.
func MatchPickupPoint(text string, points []string) (string, bool) {
	t := utils.Normalize(text)
	best, bestLen := "", 0
	for _, p := range points {
		for _, key := range pickupKeys(p) {
			if len(key) > bestLen && containsPhrase(t, key) {
				best, bestLen = p, len(key)
			}
		}
	}
	return best, best != ""
}

func pickupKeys(point string) []string {
	n := utils.Normalize(point)
	n = strings.TrimSpace(strings.TrimPrefix(n, "c.c"))
	keys := []string{n}
	if i := strings.LastIndex(n, "-"); i >= 0 {
		if tail := strings.TrimSpace(n[i+1:]); len(tail) >= 4 {
			keys = append(keys, tail)
		}
	}
	return keys
}

func containsPhrase(text, phrase string) bool {
	i := strings.Index(text, phrase)
	if i < 0 {
		return false
	}
	end := i + len(phrase)
	before := i == 0 || !isWordByte(text[i-1])
	after := end == len(text) || !isWordByte(text[end])
	return before && after
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
