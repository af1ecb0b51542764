package reply

// Template names are "<outcome>", "<outcome>.<operation>" or
// "<outcome>.<reason>"; the most specific one present wins.
var spanish = map[string]string{
	"greeting": "Hola,",
	"signoff":  "Saludos,\nBiblioteca",
	"subject":  "Respuesta a: ",

	"success.reserve_book":       `Tu reserva de «{{.Title}}» quedó confirmada. La fecha de devolución es el {{.Due}}.`,
	"success.renew_reservation":  `Renovamos tu reserva de «{{.Title}}». La nueva fecha de devolución es el {{.Due}}.`,
	"success.cancel_reservation": `Cancelamos tu reserva de «{{.Title}}». Gracias por avisarnos.`,
	"success.list_by_author": `{{if .Books}}Estos son los libros de «{{.Subject}}» en nuestro catálogo:
{{range .Books}}- {{.Title}} ({{.Author}}): {{if gt .AvailableCopies 0}}{{.AvailableCopies}} disponible(s){{else}}sin ejemplares disponibles{{end}}
{{end}}{{else}}No encontramos libros de «{{.Subject}}» en nuestro catálogo.{{end}}`,
	"success.list_catalog": `{{if .Books}}Este es nuestro catálogo:
{{range .Books}}- {{.Title}} ({{.Author}}): {{if gt .AvailableCopies 0}}{{.AvailableCopies}} disponible(s){{else}}sin ejemplares disponibles{{end}}
{{end}}{{else}}Nuestro catálogo está vacío por ahora.{{end}}`,

	"not_found.reserve_book": `No encontramos el libro «{{.Subject}}» en nuestro catálogo. Revisa el título o pídenos la lista de libros disponibles.`,
	"not_found":              `No encontramos una reserva activa a tu nombre para «{{.Subject}}».`,

	"conflict.no_copies_available": `Lo sentimos, en este momento no quedan ejemplares disponibles de «{{.Title}}».`,
	"conflict.already_reserved":    `Ya tienes una reserva activa de «{{.Title}}»{{if .Due}} con devolución el {{.Due}}{{end}}.`,
	"conflict":                     `No pudimos completar tu solicitud sobre «{{.Title}}».`,

	"rejected.ambiguous_title": `Encontramos varias coincidencias para «{{.Subject}}».{{if .Books}}
{{range .Books}}- {{.Title}} ({{.Author}})
{{end}}{{end}} ¿Podrías indicarnos el título exacto?`,
	"rejected": `No pudimos entender tu solicitud. Puedes pedirnos reservar, renovar o cancelar un libro indicando su título, ver los libros de un autor o consultar el catálogo completo.`,

	"system_degraded": `En este momento nuestro sistema no está disponible temporalmente y tu solicitud no se completó. Por favor, inténtalo de nuevo más tarde.`,
}

var english = map[string]string{
	"greeting": "Hello,",
	"signoff":  "Regards,\nThe Library",
	"subject":  "Re: ",

	"success.reserve_book":       `Your reservation of "{{.Title}}" is confirmed. It is due back on {{.Due}}.`,
	"success.renew_reservation":  `We renewed your reservation of "{{.Title}}". The new due date is {{.Due}}.`,
	"success.cancel_reservation": `We cancelled your reservation of "{{.Title}}". Thanks for letting us know.`,
	"success.list_by_author": `{{if .Books}}These are the books by "{{.Subject}}" in our catalog:
{{range .Books}}- {{.Title}} ({{.Author}}): {{if gt .AvailableCopies 0}}{{.AvailableCopies}} available{{else}}no copies available{{end}}
{{end}}{{else}}We found no books by "{{.Subject}}" in our catalog.{{end}}`,
	"success.list_catalog": `{{if .Books}}This is our catalog:
{{range .Books}}- {{.Title}} ({{.Author}}): {{if gt .AvailableCopies 0}}{{.AvailableCopies}} available{{else}}no copies available{{end}}
{{end}}{{else}}Our catalog is empty for now.{{end}}`,

	"not_found.reserve_book": `We could not find "{{.Subject}}" in our catalog. Please check the title or ask us for the list of available books.`,
	"not_found":              `We found no active reservation of "{{.Subject}}" under your name.`,

	"conflict.no_copies_available": `Sorry, there are no copies of "{{.Title}}" available right now.`,
	"conflict.already_reserved":    `You already have an active reservation of "{{.Title}}"{{if .Due}}, due back on {{.Due}}{{end}}.`,
	"conflict":                     `We could not complete your request about "{{.Title}}".`,

	"rejected.ambiguous_title": `Several books match "{{.Subject}}".{{if .Books}}
{{range .Books}}- {{.Title}} ({{.Author}})
{{end}}{{end}} Could you tell us the exact title?`,
	"rejected": `We could not understand your request. You can ask us to reserve, renew or cancel a book by its title, list the books by an author, or send the full catalog.`,

	"system_degraded": `Our system is temporarily unavailable and your request was not completed. Please try again later.`,
}
